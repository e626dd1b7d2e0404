package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a ledger backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Create debits and inserts atomically. When nothing is returned the profile
// is looked up to tell a missing user from an insufficient balance.
func (r *GenerationRepositoryPG) Create(ctx context.Context, in domain.NewGeneration) (*domain.Generation, error) {
	cost := in.Cost
	if cost < 0 {
		cost = 0
	}
	row := r.sql.QueryRow(ctx, sqlinline.QGenerationCreate,
		in.UserID,
		in.ModelID,
		in.APIID,
		in.GenerationType,
		nullableJSON(in.Payload),
		nullableJSON(in.Response),
		in.TaskID,
		cost,
		in.ClaimFor.Seconds(),
	)
	var (
		id        string
		createdAt time.Time
	)
	if err := row.Scan(&id, &createdAt); err != nil {
		if !infra.IsNoRows(err) {
			return nil, err
		}
		var balance int64
		if err := r.sql.QueryRow(ctx, sqlinline.QProfileTokenBalance, in.UserID).Scan(&balance); err != nil {
			if infra.IsNoRows(err) {
				return nil, domain.ErrNotFound
			}
			return nil, err
		}
		return nil, domain.ErrInsufficientBalance
	}
	return &domain.Generation{
		ID:             id,
		UserID:         in.UserID,
		ModelID:        in.ModelID,
		APIID:          in.APIID,
		GenerationType: in.GenerationType,
		Payload:        in.Payload,
		Response:       in.Response,
		Status:         domain.StatusPending,
		TaskID:         in.TaskID,
		Cost:           cost,
		CreatedAt:      createdAt,
	}, nil
}

// Get loads a job with its model, provider and credential.
func (r *GenerationRepositoryPG) Get(ctx context.Context, id string) (*domain.Generation, error) {
	var (
		g                                      domain.Generation
		status                                 string
		payload, response, polling, pricing    []byte
		modelID, modelName, modelType          string
		apiID, apiType, apiURL, pollURL        string
		providerModel, authScheme, key, secret string
	)
	err := r.sql.QueryRow(ctx, sqlinline.QGenerationGet, id).Scan(
		&g.ID,
		&g.UserID,
		&g.ModelID,
		&g.APIID,
		&g.GenerationType,
		&payload,
		&response,
		&polling,
		&status,
		&g.TaskID,
		&g.Cost,
		&g.SettledCost,
		&g.Duration,
		&g.CreatedAt,
		&modelID,
		&modelName,
		&modelType,
		&apiID,
		&apiType,
		&apiURL,
		&pollURL,
		&providerModel,
		&authScheme,
		&pricing,
		&key,
		&secret,
		&g.Files,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	g.Status = domain.GenerationStatus(status)
	g.Payload = rawOrNil(payload)
	g.Response = rawOrNil(response)
	g.PollingResponse = rawOrNil(polling)
	if modelID != "" && apiID != "" {
		g.Model = &domain.ModelConfig{
			ID:             modelID,
			Name:           modelName,
			GenerationType: modelType,
			API: domain.ProviderConfig{
				ID:         apiID,
				APIType:    apiType,
				APIURL:     apiURL,
				PollURL:    pollURL,
				ModelName:  providerModel,
				AuthScheme: authScheme,
				Pricing:    rawOrNil(pricing),
				Credential: domain.Credential{Key: key, Secret: secret},
			},
		}
	}
	return &g, nil
}

// Update applies a partial update. Status and duration are ignored by the
// statement once the job is terminal.
func (r *GenerationRepositoryPG) Update(ctx context.Context, upd domain.GenerationUpdate) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QGenerationUpdate,
		upd.ID,
		string(upd.Status),
		nullableJSON(upd.Response),
		nullableJSON(upd.PollingResponse),
		upd.Duration,
		upd.SettledCost,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GenerationRepositoryPG) AttachFile(ctx context.Context, generationID, fileID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QGenerationAttachFile, generationID, fileID)
	return err
}

// Claim marks a pending job as taken for ttl. A lapsed claim can be retaken.
func (r *GenerationRepositoryPG) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QGenerationClaim, id, ttl.Seconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListPending returns pending, unclaimed job ids younger than maxAge, oldest
// first.
func (r *GenerationRepositoryPG) ListPending(ctx context.Context, maxAge time.Duration, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QGenerationListPending, maxAge.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// nullableJSON maps empty or invalid JSON to SQL NULL.
func nullableJSON(raw json.RawMessage) any {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || !json.Valid(raw) {
		return nil
	}
	return []byte(raw)
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
