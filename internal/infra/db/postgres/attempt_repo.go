// File: internal/infra/db/postgres/attempt_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/repository"
)

var _ repository.AttemptRepository = (*AttemptRepo)(nil)

// NewPgxPool opens a pgx connection pool.
func NewPgxPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// AttemptRepo journals payment attempts in Postgres.
// DB columns: id TEXT PRIMARY KEY, business_id TEXT, plan_id TEXT,
// provider TEXT, reference TEXT UNIQUE, state TEXT, error TEXT,
// created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ
type AttemptRepo struct {
	pool *pgxpool.Pool
}

func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

func (r *AttemptRepo) Save(ctx context.Context, att *model.PaymentAttempt) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	const sql = `
INSERT INTO payment_attempts (id, business_id, plan_id, provider, reference, state, error, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
ON CONFLICT (reference) DO UPDATE SET
  state = EXCLUDED.state,
  error = EXCLUDED.error,
  updated_at = EXCLUDED.updated_at;
`
	_, err := r.pool.Exec(ctx, sql,
		att.ID,
		att.BusinessID,
		att.PlanID,
		string(att.Provider),
		att.Reference,
		string(att.State),
		att.Error,
		att.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres save attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepo) MarkOutcome(ctx context.Context, reference string, state model.SessionState, errMsg string) error {
	const sql = `
UPDATE payment_attempts
SET state = $2, error = $3, updated_at = $4
WHERE reference = $1;
`
	if _, err := r.pool.Exec(ctx, sql, reference, string(state), errMsg, time.Now()); err != nil {
		return fmt.Errorf("postgres mark attempt outcome: %w", err)
	}
	return nil
}

var _ repository.AttemptRepository = (*NoopAttemptRepo)(nil)

// NoopAttemptRepo is used when no database is configured; the journal is
// optional and never load-bearing.
type NoopAttemptRepo struct{}

func (NoopAttemptRepo) Save(ctx context.Context, att *model.PaymentAttempt) error { return nil }
func (NoopAttemptRepo) MarkOutcome(ctx context.Context, reference string, state model.SessionState, errMsg string) error {
	return nil
}
