package domain

import (
	"context"
	"time"
)

// GenerationRepository is the job ledger.
type GenerationRepository interface {
	// Get loads a job with its model, provider and credential joined.
	Get(ctx context.Context, id string) (*Generation, error)
	// Create debits the owner's balance by Cost and inserts the job in one
	// atomic step. It fails with ErrInsufficientBalance and writes nothing when
	// the balance does not cover the cost.
	Create(ctx context.Context, gen NewGeneration) (*Generation, error)
	Update(ctx context.Context, upd GenerationUpdate) error
	AttachFile(ctx context.Context, generationID, fileID string) error
	// Claim takes a pending job for ttl. It reports false when the job is
	// terminal or another caller's claim has not lapsed yet.
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// ListPending returns ids of pending, unclaimed jobs created within
	// maxAge, oldest first.
	ListPending(ctx context.Context, maxAge time.Duration, limit int) ([]string, error)
}

// ModelRepository resolves model configuration.
type ModelRepository interface {
	Get(ctx context.Context, id string) (*ModelConfig, error)
}

// FileRepository persists artifact metadata.
type FileRepository interface {
	Create(ctx context.Context, file *GeneratedFile) (string, error)
}

// ProfileRepository reads user balance data.
type ProfileRepository interface {
	TokenBalance(ctx context.Context, userID string) (int64, error)
}

// HostingTokenSource resolves a user's file-hosting token.
type HostingTokenSource interface {
	HostingToken(ctx context.Context, userID string) (string, error)
}
