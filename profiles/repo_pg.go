package profiles

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// PGRepo stores profiles in the hosted Postgres backend.
type PGRepo struct {
	pool *pgxpool.Pool
}

var _ Repo = (*PGRepo)(nil)

func NewPGRepo(pool *pgxpool.Pool) *PGRepo {
	return &PGRepo{pool: pool}
}

func (r *PGRepo) Get(ctx context.Context, id string) (*Profile, error) {
	const query = `
		SELECT id, role, display_name, last_sign_in, updated_at, created_at
		FROM user_profiles
		WHERE id = $1`

	var p Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Role, &p.DisplayName, &p.LastSignIn, &p.UpdatedAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "[PGRepo.Get] query")
	}
	return &p, nil
}

// Upsert inserts or updates by primary key. A concurrent insert losing the
// race surfaces as a unique violation, which is a successful no-op here.
func (r *PGRepo) Upsert(ctx context.Context, params UpsertParams) error {
	const query = `
		INSERT INTO user_profiles (id, role, display_name, last_sign_in, updated_at, created_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			display_name = EXCLUDED.display_name,
			last_sign_in = EXCLUDED.last_sign_in,
			updated_at = now()`

	_, err := r.pool.Exec(ctx, query, params.ID, params.Role, params.DisplayName, params.SignInAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil
		}
		return errors.Wrap(err, "[PGRepo.Upsert] exec")
	}
	return nil
}

func (r *PGRepo) List(ctx context.Context, offset, limit int) ([]*Profile, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM user_profiles`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "[PGRepo.List] count")
	}

	const query = `
		SELECT id, role, display_name, last_sign_in, updated_at, created_at
		FROM user_profiles
		ORDER BY id
		OFFSET $1 LIMIT $2`

	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, errors.Wrap(err, "[PGRepo.List] query")
	}
	defer rows.Close()

	profiles := make([]*Profile, 0, limit)
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Role, &p.DisplayName, &p.LastSignIn, &p.UpdatedAt, &p.CreatedAt); err != nil {
			return nil, 0, errors.Wrap(err, "[PGRepo.List] scan")
		}
		profiles = append(profiles, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "[PGRepo.List] rows")
	}
	return profiles, total, nil
}
