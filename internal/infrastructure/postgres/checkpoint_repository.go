package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/accord-app/accord/internal/domain/dispute"
)

const undefinedColumnCode = "42703"

var undefinedColumnRe = regexp.MustCompile(`column "([^"]+)"`)

// CheckpointRepository implements dispute.CheckpointRepository on a flat
// row per session. The authoritative snapshot lives in the state jsonb
// column; the other columns exist for operator queries and are dropped
// from the statement at runtime when the deployed schema lacks them.
type CheckpointRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger

	mu      sync.Mutex
	dropped map[string]struct{}
}

func NewCheckpointRepository(pool *pgxpool.Pool, logger zerolog.Logger) *CheckpointRepository {
	return &CheckpointRepository{
		pool:    pool,
		logger:  logger.With().Str("repository", "checkpoint").Logger(),
		dropped: make(map[string]struct{}),
	}
}

type checkpointColumn struct {
	name     string
	required bool
	value    func(sess *dispute.Session, state []byte) any
}

var checkpointColumns = []checkpointColumn{
	{"session_id", true, func(s *dispute.Session, _ []byte) any { return s.SessionID }},
	{"couple_id", true, func(s *dispute.Session, _ []byte) any { return s.CoupleID }},
	{"state", true, func(_ *dispute.Session, state []byte) any { return state }},
	{"creator_id", false, func(s *dispute.Session, _ []byte) any { return s.CreatorID }},
	{"partner_id", false, func(s *dispute.Session, _ []byte) any { return s.PartnerID }},
	{"phase", false, func(s *dispute.Session, _ []byte) any { return string(s.Phase) }},
	{"assessed_intensity", false, func(s *dispute.Session, _ []byte) any { return s.AssessedIntensity }},
	{"addendum_count", false, func(s *dispute.Session, _ []byte) any { return s.AddendumCount }},
	{"created_at", false, func(s *dispute.Session, _ []byte) any { return s.CreatedAt }},
	{"phase_started_at", false, func(s *dispute.Session, _ []byte) any { return s.PhaseStartedAt }},
	{"resolved_at", false, func(s *dispute.Session, _ []byte) any { return s.ResolvedAt }},
	{"updated_at", false, func(_ *dispute.Session, _ []byte) any { return time.Now().UTC() }},
}

// Upsert writes one checkpoint row. An undefined-column error from an
// older schema drops that column for the repository's lifetime and
// retries, so checkpoints survive schema drift instead of failing.
func (r *CheckpointRepository) Upsert(ctx context.Context, sess *dispute.Session) error {
	state, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	for attempt := 0; attempt <= len(checkpointColumns); attempt++ {
		query, args := r.buildUpsert(sess, state)
		_, err = r.pool.Exec(ctx, query, args...)
		if err == nil {
			return nil
		}
		column, ok := undefinedColumn(err)
		if !ok {
			return fmt.Errorf("upsert checkpoint: %w", err)
		}
		if r.isRequired(column) {
			return fmt.Errorf("checkpoint schema is missing required column %q: %w", column, err)
		}
		r.drop(column)
		r.logger.Warn().Str("column", column).Msg("schema missing optional checkpoint column; dropping from statement")
	}
	return fmt.Errorf("upsert checkpoint: %w", err)
}

func (r *CheckpointRepository) buildUpsert(sess *dispute.Session, state []byte) (string, []any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	var placeholders []string
	var updates []string
	var args []any
	for _, col := range checkpointColumns {
		if _, gone := r.dropped[col.name]; gone {
			continue
		}
		names = append(names, col.name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(names)))
		if col.name != "session_id" {
			updates = append(updates, fmt.Sprintf("%s=EXCLUDED.%s", col.name, col.name))
		}
		args = append(args, col.value(sess, state))
	}
	query := fmt.Sprintf(`
		INSERT INTO dispute_checkpoints (%s)
		VALUES (%s)
		ON CONFLICT (session_id) DO UPDATE SET %s
	`, strings.Join(names, ", "), strings.Join(placeholders, ","), strings.Join(updates, ", "))
	return query, args
}

func (r *CheckpointRepository) isRequired(column string) bool {
	for _, col := range checkpointColumns {
		if col.name == column {
			return col.required
		}
	}
	return false
}

func (r *CheckpointRepository) drop(column string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped[column] = struct{}{}
}

// Delete removes the checkpoint row for a finished session.
func (r *CheckpointRepository) Delete(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM dispute_checkpoints
		WHERE session_id=$1
	`, sessionID)
	return err
}

// Load returns one checkpointed session, or nil when no row exists.
func (r *CheckpointRepository) Load(ctx context.Context, sessionID uuid.UUID) (*dispute.Session, error) {
	var state json.RawMessage
	err := r.pool.QueryRow(ctx, `
		SELECT state
		FROM dispute_checkpoints
		WHERE session_id=$1
	`, sessionID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess dispute.Session
	if err := json.Unmarshal(state, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &sess, nil
}

// LoadAll returns every checkpointed session, newest first.
func (r *CheckpointRepository) LoadAll(ctx context.Context) ([]*dispute.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT state
		FROM dispute_checkpoints
		ORDER BY couple_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*dispute.Session
	for rows.Next() {
		var state json.RawMessage
		if err := rows.Scan(&state); err != nil {
			return nil, err
		}
		var sess dispute.Session
		if err := json.Unmarshal(state, &sess); err != nil {
			r.logger.Warn().Err(err).Msg("skipping unreadable checkpoint row")
			continue
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

// undefinedColumn extracts the offending column name from a 42703 error.
func undefinedColumn(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != undefinedColumnCode {
		return "", false
	}
	m := undefinedColumnRe.FindStringSubmatch(pgErr.Message)
	if m == nil {
		return "", false
	}
	return m[1], true
}
