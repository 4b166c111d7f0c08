package dispute

import (
	"context"

	"github.com/google/uuid"
)

// CheckpointRepository persists flat session snapshots. Writes are
// best-effort: callers log failures and keep in-memory state authoritative.
type CheckpointRepository interface {
	Upsert(ctx context.Context, session *Session) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
	Load(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	LoadAll(ctx context.Context) ([]*Session, error)
}

// CaseHistoryRepository persists the immutable closed-case record.
type CaseHistoryRepository interface {
	InsertCase(ctx context.Context, record *CaseRecord) error
}

// Locker provides a cross-process mutual-exclusion lock scoped to one
// session. Acquire blocks up to the configured timeout and returns a
// release func that must run unconditionally.
type Locker interface {
	Acquire(ctx context.Context, sessionID uuid.UUID) (release func(), err error)
}
