package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkleiva/byggklima/internal/core/domain"
)

// VerificationRepository stores verification runs whole: the result is a
// read-only bundle once computed, so it lives in a single JSONB column.
type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082802)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS verification_runs (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	result JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verification_runs_created_at ON verification_runs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *VerificationRepository) CreateRun(ctx context.Context, result *domain.VerificationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal verification result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO verification_runs (id, state, result, created_at) VALUES ($1,$2,$3,$4)
`, result.RunID, string(result.State), payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert verification run: %w", err)
	}
	return nil
}

func (r *VerificationRepository) GetRun(ctx context.Context, id string) (*domain.VerificationResult, error) {
	row := r.db.QueryRowContext(ctx, `SELECT result FROM verification_runs WHERE id = $1`, id)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get verification run %s: %w", id, domain.ErrRunNotFound)
		}
		return nil, fmt.Errorf("scan verification run: %w", err)
	}

	var result domain.VerificationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal verification result: %w", err)
	}
	return &result, nil
}
