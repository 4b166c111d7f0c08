package postgres

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accord-app/accord/internal/domain/dispute"
)

func TestUndefinedColumn(t *testing.T) {
	column, ok := undefinedColumn(&pgconn.PgError{
		Code:    undefinedColumnCode,
		Message: `column "assessed_intensity" of relation "dispute_checkpoints" does not exist`,
	})
	require.True(t, ok)
	assert.Equal(t, "assessed_intensity", column)

	_, ok = undefinedColumn(&pgconn.PgError{Code: "23505", Message: `column "x" conflict`})
	assert.False(t, ok)
	_, ok = undefinedColumn(fmt.Errorf("plain error"))
	assert.False(t, ok)
	_, ok = undefinedColumn(fmt.Errorf("wrapped: %w", &pgconn.PgError{
		Code:    undefinedColumnCode,
		Message: `column "phase" does not exist`,
	}))
	assert.True(t, ok)
}

func TestBuildUpsertDropsColumns(t *testing.T) {
	repo := NewCheckpointRepository(nil, zerolog.Nop())
	sess := dispute.NewSession(uuid.New(), uuid.New(), time.Now().UTC())
	state := []byte(`{}`)

	query, args := repo.buildUpsert(sess, state)
	assert.Contains(t, query, "assessed_intensity")
	assert.Len(t, args, len(checkpointColumns))

	repo.drop("assessed_intensity")
	repo.drop("resolved_at")
	query, args = repo.buildUpsert(sess, state)
	assert.NotContains(t, query, "assessed_intensity")
	assert.NotContains(t, query, "resolved_at")
	assert.Len(t, args, len(checkpointColumns)-2)

	// The conflict target and the snapshot column always survive.
	assert.Contains(t, query, "ON CONFLICT (session_id)")
	assert.Contains(t, query, "state")
	assert.Equal(t, len(args), strings.Count(query, "$"))
}

func TestRequiredColumnsNeverDroppable(t *testing.T) {
	repo := NewCheckpointRepository(nil, zerolog.Nop())
	assert.True(t, repo.isRequired("session_id"))
	assert.True(t, repo.isRequired("couple_id"))
	assert.True(t, repo.isRequired("state"))
	assert.False(t, repo.isRequired("phase"))
	assert.False(t, repo.isRequired("not_a_column"))
}
