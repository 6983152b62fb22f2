// Package profiles persists the user_profiles mirror of identity-provider
// state. The profile row is a cache, not the source of truth: the role
// resolver consults it only when provider metadata carries no role claim,
// and every session refresh writes the resolved role back.
package profiles

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/CSU-AIML/neuraverse/roles"
)

// ErrNotFound reports a missing profile row.
var ErrNotFound = errors.New("profile not found")

// Profile is one row of user_profiles, keyed by the identity provider's
// subject id.
type Profile struct {
	ID          string
	Role        roles.Role
	DisplayName string
	LastSignIn  time.Time
	UpdatedAt   time.Time
	CreatedAt   time.Time
}

// UpsertParams carries the fields written on every session refresh.
type UpsertParams struct {
	ID          string
	Role        roles.Role
	DisplayName string
	SignInAt    time.Time
}

// Repo is the storage contract for user_profiles. Upsert is idempotent:
// writing the same tuple twice changes nothing but timestamps, and a
// duplicate-key race on create is a successful no-op.
type Repo interface {
	Get(ctx context.Context, id string) (*Profile, error)
	Upsert(ctx context.Context, params UpsertParams) error
	List(ctx context.Context, offset, limit int) ([]*Profile, int, error)
}

// RoleReader adapts a Repo to the role resolver's read interface.
func RoleReader(repo Repo) roles.ProfileReader {
	return roleReader{repo: repo}
}

type roleReader struct {
	repo Repo
}

func (rr roleReader) RoleOf(ctx context.Context, subjectID string) (string, error) {
	p, err := rr.repo.Get(ctx, subjectID)
	if err != nil {
		return "", err
	}
	return string(p.Role), nil
}
