package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pingRetries = 3

// NewPool opens a pgx connection pool and verifies connectivity,
// retrying the initial ping with exponential backoff so the API
// survives a database that is still starting up.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.HealthCheckPeriod = 1 * time.Minute
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	// PgBouncer in transaction mode breaks prepared statement caching
	// (SQLSTATE 42P05), so use the simple protocol
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	retryDelay := 1 * time.Second
	for i := 0; i < pingRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return pool, nil
		}
		if i < pingRetries-1 {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}

	pool.Close()
	return nil, fmt.Errorf("ping database after %d retries: %w", pingRetries, err)
}
