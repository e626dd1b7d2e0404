package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type recordingQuerier struct {
	lastSQL string
	args    []any
}

func (q *recordingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.lastSQL = sql
	q.args = args
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (q *recordingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	return errorRow{err: pgx.ErrNoRows}
}

func (q *recordingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.lastSQL = sql
	return nil, errors.New("not implemented")
}

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		marker  string
		body    string
		wantErr bool
	}{
		{
			name:   "valid marker",
			query:  "--sql 0b7c4f3e-8a61-4d8e-9f7b-2f3c9b1a6d40\nselect 1;",
			marker: "0b7c4f3e-8a61-4d8e-9f7b-2f3c9b1a6d40",
			body:   "select 1;",
		},
		{
			name:   "leading whitespace tolerated",
			query:  "\n  --sql 0b7c4f3e-8a61-4d8e-9f7b-2f3c9b1a6d40\nselect 1;\n",
			marker: "0b7c4f3e-8a61-4d8e-9f7b-2f3c9b1a6d40",
			body:   "select 1;",
		},
		{
			name:    "missing marker",
			query:   "select 1;",
			wantErr: true,
		},
		{
			name:    "uppercase uuid rejected",
			query:   "--sql 0B7C4F3E-8A61-4D8E-9F7B-2F3C9B1A6D40\nselect 1;",
			wantErr: true,
		},
		{
			name:    "empty",
			query:   "   ",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got marker %q", marker)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker error: %v", err)
			}
			if marker != tc.marker {
				t.Fatalf("marker = %q, want %q", marker, tc.marker)
			}
			if body != tc.body {
				t.Fatalf("body = %q, want %q", body, tc.body)
			}
		})
	}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	q := &recordingQuerier{}
	runner := NewSQLRunner(q, zerolog.Nop())

	tag, err := runner.Exec(context.Background(), "--sql 0b7c4f3e-8a61-4d8e-9f7b-2f3c9b1a6d40\nupdate t set a = $1", 7)
	if err != nil {
		t.Fatalf("Exec error: %v", err)
	}
	if tag.RowsAffected() != 1 {
		t.Fatalf("RowsAffected = %d, want 1", tag.RowsAffected())
	}
	if q.lastSQL != "update t set a = $1" {
		t.Fatalf("forwarded sql = %q", q.lastSQL)
	}
	if len(q.args) != 1 || q.args[0] != 7 {
		t.Fatalf("forwarded args = %#v", q.args)
	}
}

func TestSQLRunnerRejectsUnmarkedQuery(t *testing.T) {
	q := &recordingQuerier{}
	runner := NewSQLRunner(q, zerolog.Nop())

	if _, err := runner.Exec(context.Background(), "delete from t"); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Exec error = %v, want ErrMissingMarker", err)
	}
	if q.lastSQL != "" {
		t.Fatalf("unmarked query reached the database: %q", q.lastSQL)
	}
	var n int
	if err := runner.QueryRow(context.Background(), "select 1").Scan(&n); !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("QueryRow error = %v, want ErrMissingMarker", err)
	}
}
