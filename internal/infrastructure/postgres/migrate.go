package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the idempotent DDL run at boot. The checkpoint table carries
// the full session snapshot in state; the flat columns exist for operator
// queries and may lag behind (see CheckpointRepository).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id    UUID PRIMARY KEY,
		token_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dispute_checkpoints (
		session_id         UUID PRIMARY KEY,
		couple_id          TEXT NOT NULL UNIQUE,
		state              JSONB NOT NULL,
		creator_id         UUID,
		partner_id         UUID,
		phase              TEXT,
		assessed_intensity TEXT,
		addendum_count     INT,
		created_at         TIMESTAMPTZ,
		phase_started_at   TIMESTAMPTZ,
		resolved_at        TIMESTAMPTZ,
		updated_at         TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS dispute_cases (
		case_id    UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		couple_id  TEXT NOT NULL,
		creator_id UUID NOT NULL,
		partner_id UUID NOT NULL,
		verdicts   JSONB NOT NULL,
		addendums  JSONB,
		closed_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dispute_cases_couple ON dispute_cases (couple_id, closed_at DESC)`,
}

// Migrate applies the schema. Every statement is idempotent, so repeated
// boots and concurrent instances are safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
