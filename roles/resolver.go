package roles

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/CSU-AIML/neuraverse/identity"
)

// ProfileReader looks up the persisted role for a subject id.
type ProfileReader interface {
	RoleOf(ctx context.Context, subjectID string) (string, error)
}

// Resolver derives a role from an identity record. Precedence:
//
//  1. a valid role claim in the record's provider metadata (authoritative
//     for freshly created accounts, and it wins even when the profile row
//     disagrees),
//  2. a valid role on the persisted profile row,
//  3. RoleUser.
//
// Resolution is deterministic and never fails: profile lookup errors are
// treated as not-found and fall through to the default.
type Resolver struct {
	profiles ProfileReader
	log      zerolog.Logger
}

func NewResolver(profiles ProfileReader, log zerolog.Logger) *Resolver {
	return &Resolver{profiles: profiles, log: log}
}

// Resolve returns the authorization role for rec. Never RoleAdmin unless
// a trusted source says so.
func (r *Resolver) Resolve(ctx context.Context, rec identity.Record) Role {
	if role, ok := Parse(rec.RoleClaim); ok {
		return role
	}

	raw, err := r.profiles.RoleOf(ctx, rec.ID)
	if err != nil {
		r.log.Debug().Err(err).Str("subject", rec.ID).Msg("profile role lookup failed; using default")
		return RoleUser
	}
	if role, ok := Parse(raw); ok {
		return role
	}

	return RoleUser
}
