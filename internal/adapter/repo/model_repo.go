package repo

import (
	"context"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// ModelRepositoryPG resolves models with their provider and credential.
type ModelRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewModelRepository(sql infra.SQLExecutor) *ModelRepositoryPG {
	return &ModelRepositoryPG{sql: sql}
}

func (r *ModelRepositoryPG) Get(ctx context.Context, id string) (*domain.ModelConfig, error) {
	var (
		m       domain.ModelConfig
		pricing []byte
	)
	err := r.sql.QueryRow(ctx, sqlinline.QModelGet, id).Scan(
		&m.ID,
		&m.Name,
		&m.GenerationType,
		&m.API.ID,
		&m.API.APIType,
		&m.API.APIURL,
		&m.API.PollURL,
		&m.API.ModelName,
		&m.API.AuthScheme,
		&pricing,
		&m.API.Credential.Key,
		&m.API.Credential.Secret,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	m.API.Pricing = rawOrNil(pricing)
	return &m, nil
}

var _ domain.ModelRepository = (*ModelRepositoryPG)(nil)
