package profiles

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/roles"
)

// Synchronizer mirrors identity-provider state into user_profiles.
// Writes are best-effort: a failed sync is logged and swallowed so that it
// can never block session establishment.
type Synchronizer struct {
	repo    Repo
	log     zerolog.Logger
	nowTime func() time.Time
}

func NewSynchronizer(repo Repo, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{repo: repo, log: log, nowTime: time.Now}
}

// WithNowTime overrides the clock (for testing).
func (s *Synchronizer) WithNowTime(now func() time.Time) *Synchronizer {
	s.nowTime = now
	return s
}

// Sync upserts the profile row for rec with the resolved role. Idempotent;
// never returns an error to the caller.
func (s *Synchronizer) Sync(ctx context.Context, rec identity.Record, role roles.Role) {
	params := UpsertParams{
		ID:          rec.ID,
		Role:        role,
		DisplayName: rec.DisplayName,
		SignInAt:    s.nowTime(),
	}
	if err := s.repo.Upsert(ctx, params); err != nil {
		s.log.Warn().Err(err).Str("subject", rec.ID).Msg("profile sync failed; continuing")
	}
}
