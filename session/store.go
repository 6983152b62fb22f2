package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/profiles"
	"github.com/CSU-AIML/neuraverse/roles"
	"github.com/CSU-AIML/neuraverse/security"
)

// Store holds the live session and keeps it consistent with the identity
// provider. Each resolution pass (identity fetch, role resolution, profile
// sync) is tagged with a generation; a pass superseded by a sign-out or a
// newer pass discards its result instead of resurrecting stale state.
// Sign-out clears the session synchronously, without waiting on any
// in-flight network call.
type Store struct {
	adapter  *identity.Adapter
	resolver *roles.Resolver
	profiles *profiles.Synchronizer
	events   *security.Recorder
	log      zerolog.Logger

	mu         sync.Mutex
	current    *Session
	role       roles.Role
	loading    bool
	generation uint64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the store logger.
func WithStoreLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore wires the store to its collaborators. The store starts in the
// loading state; Start runs the initial resolution pass.
func NewStore(adapter *identity.Adapter, resolver *roles.Resolver, sync *profiles.Synchronizer, events *security.Recorder, options ...StoreOption) (*Store, error) {
	if adapter == nil {
		return nil, errors.New("[NewStore] identity adapter is required")
	}
	if resolver == nil {
		return nil, errors.New("[NewStore] role resolver is required")
	}
	if sync == nil {
		return nil, errors.New("[NewStore] profile synchronizer is required")
	}
	if events == nil {
		return nil, errors.New("[NewStore] security recorder is required")
	}

	s := &Store{
		adapter:  adapter,
		resolver: resolver,
		profiles: sync,
		events:   events,
		log:      zerolog.Nop(),
		loading:  true,
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Start runs the initial resolution pass and then consumes the adapter's
// auth-change events until ctx ends. Events are handled sequentially on
// one goroutine, so passes triggered by notifications never run
// destructively in parallel.
func (s *Store) Start(ctx context.Context) {
	go func() {
		s.resolve(ctx, s.beginPass())

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-s.adapter.Events():
				if !ok {
					return
				}
				switch ev.Kind {
				case identity.EventSignedIn, identity.EventUserUpdated:
					s.resolve(ctx, s.beginPass())
				case identity.EventSignedOut:
					s.clear()
				}
			}
		}
	}()
}

// Current returns a consistent snapshot of the session state.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Role: s.role, IsLoading: s.loading}
	if s.current != nil {
		copied := *s.current
		snap.User = &copied
	}
	return snap
}

// IsAdmin reports whether the live session carries the admin role.
func (s *Store) IsAdmin() bool {
	return s.Current().IsAdmin()
}

// IsLoading reports whether a resolution pass is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// SignIn authenticates and settles the session before returning, so the
// caller observes either an error or a populated session. The SIGNED_IN
// notification triggers a second, identical pass; generation checks make
// the duplicate harmless.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	grant, err := s.adapter.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	s.events.Record(ctx, security.EventSignIn, grant.Record.ID, map[string]any{"email": grant.Record.Email})
	s.resolve(ctx, s.beginPass())
	return nil
}

// SignUp registers a new account and settles the session.
func (s *Store) SignUp(ctx context.Context, email, password string) error {
	grant, err := s.adapter.SignUp(ctx, email, password)
	if err != nil {
		return err
	}

	s.events.Record(ctx, security.EventSignIn, grant.Record.ID, map[string]any{"email": grant.Record.Email, "sign_up": true})
	s.resolve(ctx, s.beginPass())
	return nil
}

// SignOut clears the session immediately and then revokes the provider
// session. The clear does not wait for the network: an in-flight
// resolution pass is invalidated before the provider call starts.
func (s *Store) SignOut(ctx context.Context) error {
	snap := s.Current()

	s.clear()

	err := s.adapter.SignOut(ctx)

	userID := ""
	if snap.User != nil {
		userID = snap.User.UserID
	}
	s.events.Record(ctx, security.EventSignOut, userID, nil)

	return err
}

// RefreshUser re-runs a full resolution pass. The store reports loading
// for the entire duration of the pass.
func (s *Store) RefreshUser(ctx context.Context) {
	s.resolve(ctx, s.beginPass())
}

// beginPass invalidates older passes and marks the store loading.
func (s *Store) beginPass() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.loading = true
	return s.generation
}

// clear drops the session synchronously. Bumping the generation here is
// what guarantees a pass started before the sign-out cannot write its
// result afterwards.
func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.current = nil
	s.role = ""
	s.loading = false
}

// resolve runs one resolution pass: fetch identity, resolve role, sync
// profile, publish. The publish step is skipped when the pass has been
// superseded.
func (s *Store) resolve(ctx context.Context, gen uint64) {
	rec, err := s.adapter.CurrentUser(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("resolution pass: identity fetch failed")
		s.complete(gen, nil, "")
		return
	}
	if rec == nil {
		s.complete(gen, nil, "")
		return
	}

	role := s.resolver.Resolve(ctx, *rec)
	s.profiles.Sync(ctx, *rec, role)

	sess := &Session{
		UserID:      rec.ID,
		Email:       rec.Email,
		Role:        role,
		DisplayName: rec.DisplayName,
		AvatarURL:   rec.AvatarURL,
	}
	if !s.complete(gen, sess, role) {
		s.log.Debug().Uint64("generation", gen).Msg("resolution pass superseded; result discarded")
	}
}

// complete publishes the pass result if the pass is still current.
func (s *Store) complete(gen uint64, sess *Session, role roles.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.current = sess
	s.role = role
	s.loading = false
	return true
}
