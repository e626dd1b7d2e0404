package repo

import (
	"context"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// ProfileRepositoryPG reads user_profiles.
type ProfileRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewProfileRepository(sql infra.SQLExecutor) *ProfileRepositoryPG {
	return &ProfileRepositoryPG{sql: sql}
}

func (r *ProfileRepositoryPG) TokenBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	if err := r.sql.QueryRow(ctx, sqlinline.QProfileTokenBalance, userID).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

var _ domain.ProfileRepository = (*ProfileRepositoryPG)(nil)
