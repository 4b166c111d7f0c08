package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens the shared connection pool backing the checkpoint, case
// history and credential repositories, the advisory locker, and both
// LISTEN/NOTIFY buses. The bus listeners each pin a connection, so the
// pool must keep at least a few spare.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	config.ConnConfig.RuntimeParams["application_name"] = "accord"
	if config.MaxConns < 8 {
		config.MaxConns = 8
	}
	return pgxpool.NewWithConfig(ctx, config)
}
