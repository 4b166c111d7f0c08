package postgres

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const lockRetryInterval = 100 * time.Millisecond

// AdvisoryLocker implements dispute.Locker on postgres session-level
// advisory locks. The lock is held on a dedicated pooled connection so
// release always runs against the connection that took it.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

// Acquire polls pg_try_advisory_lock until the lock is won or ctx expires.
func (l *AdvisoryLocker) Acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	key := advisoryKey(sessionID)

	for {
		var locked bool
		if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
			conn.Release()
			return nil, fmt.Errorf("try advisory lock: %w", err)
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			conn.Release()
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	release := func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}
	return release, nil
}

// advisoryKey folds the uuid into the bigint keyspace postgres expects.
func advisoryKey(sessionID uuid.UUID) int64 {
	b := sessionID[:]
	return int64(binary.BigEndian.Uint64(b[:8]) ^ binary.BigEndian.Uint64(b[8:]))
}
