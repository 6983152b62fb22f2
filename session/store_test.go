package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/identity/localidp"
	"github.com/CSU-AIML/neuraverse/profiles"
	"github.com/CSU-AIML/neuraverse/roles"
	"github.com/CSU-AIML/neuraverse/security"
	"github.com/CSU-AIML/neuraverse/session"
)

const (
	testEmail    = "john.doe@example.com"
	testPassword = "Password1"
)

// testFixture holds the store and its collaborators.
type testFixture struct {
	idp          *localidp.Provider
	backend      *gatedBackend
	adapter      *identity.Adapter
	profileRepo  *profiles.InMemoryRepo
	securityRepo *security.InMemoryRepo
	store        *session.Store
}

// gatedBackend wraps the in-process provider so a test can hold a
// resolution pass open at the identity-fetch step.
type gatedBackend struct {
	identity.PasswordBackend

	mu      sync.Mutex
	armed   bool
	record  *identity.Record
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBackend) arm(record *identity.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
	g.record = record
}

func (g *gatedBackend) CurrentUser(ctx context.Context, token string) (*identity.Record, error) {
	g.mu.Lock()
	armed := g.armed
	record := g.record
	g.mu.Unlock()

	if !armed {
		return g.PasswordBackend.CurrentUser(ctx, token)
	}
	g.entered <- struct{}{}
	<-g.release
	return record, nil
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	idp := localidp.New()
	backend := &gatedBackend{
		PasswordBackend: idp,
		entered:         make(chan struct{}, 1),
		release:         make(chan struct{}),
	}

	adapter, err := identity.NewAdapter(backend, nil)
	require.NoError(t, err)

	profileRepo := profiles.NewInMemoryRepo()
	securityRepo := security.NewInMemoryRepo()

	resolver := roles.NewResolver(profiles.RoleReader(profileRepo), zerolog.Nop())
	synchronizer := profiles.NewSynchronizer(profileRepo, zerolog.Nop())
	recorder := security.NewRecorder(securityRepo, zerolog.Nop())

	store, err := session.NewStore(adapter, resolver, synchronizer, recorder, session.WithStoreLogger(zerolog.Nop()))
	require.NoError(t, err)

	return &testFixture{
		idp:          idp,
		backend:      backend,
		adapter:      adapter,
		profileRepo:  profileRepo,
		securityRepo: securityRepo,
		store:        store,
	}
}

func TestSignUpEstablishesSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SignUp(ctx, testEmail, testPassword))

	snap := f.store.Current()
	require.NotNil(t, snap.User)
	require.Equal(t, testEmail, snap.User.Email)
	require.Equal(t, roles.RoleUser, snap.Role)
	require.False(t, snap.IsAdmin())
	require.False(t, snap.IsLoading)

	// The profile row was created with the resolved role.
	p, err := f.profileRepo.Get(ctx, snap.User.UserID)
	require.NoError(t, err)
	require.Equal(t, roles.RoleUser, p.Role)
	require.False(t, p.LastSignIn.IsZero())
}

func TestSignInRecordsSecurityEvent(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SignUp(ctx, testEmail, testPassword))
	require.NoError(t, f.store.SignOut(ctx))
	require.NoError(t, f.store.SignIn(ctx, testEmail, testPassword))

	var signIns int
	for _, e := range f.securityRepo.Events() {
		if e.Type == security.EventSignIn {
			signIns++
		}
	}
	require.Equal(t, 2, signIns, "one for sign-up, one for sign-in")
}

func TestSignInBadCredentialsLeavesStoreSignedOut(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SignUp(ctx, testEmail, testPassword))
	require.NoError(t, f.store.SignOut(ctx))

	err := f.store.SignIn(ctx, testEmail, "WrongPassword1")
	require.Error(t, err)
	require.Equal(t, identity.KindInvalidCredentials, identity.KindOf(err))
	require.Nil(t, f.store.Current().User)
}

func TestAdminRoleFromMetadataClaim(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SignUp(ctx, testEmail, testPassword))
	require.False(t, f.store.IsAdmin())

	require.True(t, f.idp.SetRoleClaim(testEmail, "admin"))
	f.store.RefreshUser(ctx)

	snap := f.store.Current()
	require.True(t, snap.IsAdmin())
	require.Equal(t, roles.RoleAdmin, snap.Role)

	// The promoted role is mirrored into the profile row.
	p, err := f.profileRepo.Get(ctx, snap.User.UserID)
	require.NoError(t, err)
	require.Equal(t, roles.RoleAdmin, p.Role)
}

func TestSignOutClearsSynchronously(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SignUp(ctx, testEmail, testPassword))
	require.NotNil(t, f.store.Current().User)

	require.NoError(t, f.store.SignOut(ctx))

	snap := f.store.Current()
	require.Nil(t, snap.User)
	require.Equal(t, roles.Role(""), snap.Role)
	require.False(t, snap.IsLoading)

	var signOuts int
	for _, e := range f.securityRepo.Events() {
		if e.Type == security.EventSignOut {
			signOuts++
		}
	}
	require.Equal(t, 1, signOuts)
}

func TestStaleResolutionPassCannotResurrectSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SignUp(ctx, testEmail, testPassword))
	userID := f.store.Current().User.UserID

	// Hold the next pass open at the identity fetch.
	f.backend.arm(&identity.Record{ID: userID, Email: testEmail})

	done := make(chan struct{})
	go func() {
		f.store.RefreshUser(ctx)
		close(done)
	}()
	<-f.backend.entered

	// The pass is in flight: the store reports loading, not signed out.
	require.True(t, f.store.IsLoading())

	// Sign out while the pass is blocked. The clear must not wait.
	require.NoError(t, f.store.SignOut(ctx))
	require.Nil(t, f.store.Current().User)

	// Let the stale pass finish; its result must be discarded.
	close(f.backend.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("resolution pass did not finish")
	}

	snap := f.store.Current()
	require.Nil(t, snap.User, "a superseded pass must not resurrect the session")
	require.False(t, snap.IsLoading)
}

func TestStartConsumesAuthEvents(t *testing.T) {
	f := setupTestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.store.Start(ctx)

	// Sign in through the adapter directly; the event loop should settle
	// the store without an explicit store call.
	_, err := f.adapter.SignUp(ctx, testEmail, testPassword)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := f.store.Current()
		return snap.User != nil && snap.User.Email == testEmail
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, f.adapter.SignOut(ctx))

	require.Eventually(t, func() bool {
		return f.store.Current().User == nil
	}, 5*time.Second, 10*time.Millisecond)
}
