// Package credentials resolves per-user credentials for external services.
package credentials

import (
	"context"
	"errors"
	"strings"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// Store reads and writes the Zipline token kept in user_profiles.zipline.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// HostingToken returns the user's token, or "" when the user has none.
func (s *Store) HostingToken(ctx context.Context, userID string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QProfileHostingToken, userID)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetHostingToken stores token for an existing profile, keeping the other
// keys of the zipline document.
func (s *Store) SetHostingToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("hosting token is required")
	}
	tag, err := s.sql.Exec(ctx, sqlinline.QProfileSetHostingToken, userID, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.HostingTokenSource = (*Store)(nil)
