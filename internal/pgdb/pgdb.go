// Package pgdb bootstraps the connection pool for the hosted relational
// backend and ensures the tables this service owns exist.
package pgdb

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	retryAttempts = 3
	retryInterval = 2 * time.Second
)

// Connect opens a pgx pool with a short retry loop so transient startup
// races with the database do not kill the service.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "[pgdb.Connect] parse config")
	}

	var lastErr error
	for i := range retryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * retryInterval)
			continue
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			lastErr = err
			time.Sleep(time.Duration(i+1) * retryInterval)
			continue
		}
		return pool, nil
	}
	return nil, errors.Wrap(lastErr, "[pgdb.Connect] open connection")
}

// EnsureSchema creates the user_profiles and security_events tables when
// missing. security_events is append-only; no update or delete paths exist
// in this service.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS user_profiles (
			id           text PRIMARY KEY,
			role         text NOT NULL DEFAULT 'user',
			display_name text NOT NULL DEFAULT '',
			last_sign_in timestamptz,
			updated_at   timestamptz NOT NULL DEFAULT now(),
			created_at   timestamptz NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS security_events (
			id         bigserial PRIMARY KEY,
			event_type text NOT NULL,
			user_id    text,
			details    jsonb,
			created_at timestamptz NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS security_events_user_type_idx
			ON security_events (user_id, event_type);`

	if _, err := pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "[pgdb.EnsureSchema] exec")
	}
	return nil
}
