package security

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PGRepo stores security events in the hosted Postgres backend.
type PGRepo struct {
	pool *pgxpool.Pool
}

var _ Repo = (*PGRepo)(nil)

func NewPGRepo(pool *pgxpool.Pool) *PGRepo {
	return &PGRepo{pool: pool}
}

func (r *PGRepo) Append(ctx context.Context, event Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return errors.Wrap(err, "[PGRepo.Append] marshal details")
	}

	const query = `
		INSERT INTO security_events (event_type, user_id, details, created_at)
		VALUES ($1, NULLIF($2, ''), $3, now())`

	if _, err := r.pool.Exec(ctx, query, event.Type, event.UserID, details); err != nil {
		return errors.Wrap(err, "[PGRepo.Append] exec")
	}
	return nil
}

func (r *PGRepo) Exists(ctx context.Context, userID, eventType string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM security_events
			WHERE user_id = $1 AND event_type = $2
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, eventType).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "[PGRepo.Exists] query")
	}
	return exists, nil
}
