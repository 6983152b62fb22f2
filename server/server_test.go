package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/identity/localidp"
	"github.com/CSU-AIML/neuraverse/internal/config"
	"github.com/CSU-AIML/neuraverse/profiles"
	"github.com/CSU-AIML/neuraverse/roles"
	"github.com/CSU-AIML/neuraverse/security"
	"github.com/CSU-AIML/neuraverse/server"
	"github.com/CSU-AIML/neuraverse/server/flowstate"
	"github.com/CSU-AIML/neuraverse/session"
)

const (
	testEmail    = "john.doe@example.com"
	testPassword = "Password1"
)

// testFixture wires a full server over the in-process identity provider
// and in-memory storage.
type testFixture struct {
	idp          *localidp.Provider
	adapter      *identity.Adapter
	store        *session.Store
	profileRepo  *profiles.InMemoryRepo
	securityRepo *security.InMemoryRepo
	recorder     *security.Recorder
	server       *server.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	idp := localidp.New()
	adapter, err := identity.NewAdapter(idp, nil)
	require.NoError(t, err)

	profileRepo := profiles.NewInMemoryRepo()
	securityRepo := security.NewInMemoryRepo()
	resolver := roles.NewResolver(profiles.RoleReader(profileRepo), zerolog.Nop())
	synchronizer := profiles.NewSynchronizer(profileRepo, zerolog.Nop())
	recorder := security.NewRecorder(securityRepo, zerolog.Nop())

	store, err := session.NewStore(adapter, resolver, synchronizer, recorder)
	require.NoError(t, err)
	// Settle the initial loading state to signed out.
	store.RefreshUser(context.Background())

	deps := server.Deps{
		Adapter:         adapter,
		Sessions:        store,
		Profiles:        profileRepo,
		Recorder:        recorder,
		Resolver:        resolver,
		NewIntrospector: func() server.TokenIntrospector { return idp },
	}

	srv, err := server.New(config.New(), deps, flowstate.NewInMemoryRepo(), zerolog.Nop())
	require.NoError(t, err)

	return &testFixture{
		idp:          idp,
		adapter:      adapter,
		store:        store,
		profileRepo:  profileRepo,
		securityRepo: securityRepo,
		recorder:     recorder,
		server:       srv,
	}
}

func (f *testFixture) do(t *testing.T, method, target string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (f *testFixture) signUp(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": testEmail, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSignUpAndSession(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": testEmail, "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	user := body["user"].(map[string]any)
	require.Equal(t, testEmail, user["email"])
	require.Equal(t, "user", body["role"])
	require.Equal(t, false, body["isAdmin"])

	rec = f.do(t, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeJSON(t, rec)
	require.NotNil(t, body["user"])
}

func TestSignUpWeakPassword(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": testEmail, "password": "weak"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotEmpty(t, decodeJSON(t, rec)["error"])
}

func TestSignUpDuplicateEmail(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)

	rec := f.do(t, http.MethodPost, "/auth/signup", map[string]string{"email": testEmail, "password": testPassword})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, identity.MsgAlreadyRegistered, decodeJSON(t, rec)["error"])
}

func TestSignInWrongPasswordIsGeneric(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)

	rec := f.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": testEmail, "password": "WrongPassword1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, identity.MsgInvalidCredentials, decodeJSON(t, rec)["error"])

	// Unknown email answers identically.
	rec = f.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": "nobody@example.com", "password": testPassword})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, identity.MsgInvalidCredentials, decodeJSON(t, rec)["error"])
}

func TestSignOut(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)

	rec := f.do(t, http.MethodPost, "/auth/signout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/auth/session", nil)
	body := decodeJSON(t, rec)
	require.Nil(t, body["user"])
	require.Equal(t, false, body["isLoading"])
}

func TestForgotPasswordDoesNotEnumerate(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)

	known := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": testEmail})
	unknown := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "nobody@example.com"})

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	require.Equal(t, known.Body.String(), unknown.Body.String())

	var resetEvents int
	for _, e := range f.securityRepo.Events() {
		if e.Type == security.EventPasswordReset {
			resetEvents++
			require.Equal(t, true, e.Details["reset_requested"])
		}
	}
	require.Equal(t, 2, resetEvents)
}

func TestPasswordResetFlow(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/auth/signout", nil).Code)

	rec := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": testEmail})
	require.Equal(t, http.StatusOK, rec.Code)

	recovery := f.idp.LastRecoveryToken()
	require.NotEmpty(t, recovery)

	// Landing the link moves the token into a cookie and strips the URL.
	rec = f.do(t, http.MethodGet, "/auth/reset-password?access_token="+recovery+"&type=recovery", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth/reset-password", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	cookie := cookies[0]

	withCookie := func(req *http.Request) { req.AddCookie(cookie) }

	// The clean page is ready with the cookie present.
	rec = f.do(t, http.MethodGet, "/auth/reset-password", nil, withCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/reset-password", map[string]string{"password": "NewPassword1"}, withCookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The flow state is single use.
	rec = f.do(t, http.MethodPost, "/auth/reset-password", map[string]string{"password": "AnotherPassword1"}, withCookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The new password works, the old one does not.
	rec = f.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": testEmail, "password": testPassword})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(t, http.MethodPost, "/auth/signin", map[string]string{"email": testEmail, "password": "NewPassword1"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResetPasswordWithoutTokenOrCookie(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, "/auth/reset-password", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "/auth/signin", decodeJSON(t, rec)["redirect"])

	rec = f.do(t, http.MethodPost, "/auth/reset-password", map[string]string{"password": "NewPassword1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGuardRedirectsSignedOut(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth/signin", rec.Header().Get("Location"))
}

func TestGuardDefersWhileLoading(t *testing.T) {
	f := setupTestFixture(t)

	// A fresh store reports loading until its first pass completes; force
	// the state by starting a new fixture without settling.
	idp := localidp.New()
	adapter, err := identity.NewAdapter(idp, nil)
	require.NoError(t, err)
	resolver := roles.NewResolver(profiles.RoleReader(f.profileRepo), zerolog.Nop())
	synchronizer := profiles.NewSynchronizer(f.profileRepo, zerolog.Nop())
	store, err := session.NewStore(adapter, resolver, synchronizer, f.recorder)
	require.NoError(t, err)

	deps := server.Deps{
		Adapter:         adapter,
		Sessions:        store,
		Profiles:        f.profileRepo,
		Recorder:        f.recorder,
		Resolver:        resolver,
		NewIntrospector: func() server.TokenIntrospector { return idp },
	}
	srv, err := server.New(config.New(), deps, flowstate.NewInMemoryRepo(), zerolog.Nop())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestGuardDeniesAdminRoute(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)

	rec := f.do(t, http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	body := decodeJSON(t, rec)
	require.Equal(t, "Admin access required", body["error"])
	require.Equal(t, "/", body["redirect"])
}

func TestAdminUsersListing(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)

	require.True(t, f.idp.SetRoleClaim(testEmail, "admin"))
	f.store.RefreshUser(context.Background())

	rec := f.do(t, http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeJSON(t, rec)
	require.EqualValues(t, 1, body["total"])
	users := body["users"].([]any)
	require.Len(t, users, 1)
	require.Equal(t, "admin", users[0].(map[string]any)["role"])
}

func TestMeIncludesProfile(t *testing.T) {
	f := setupTestFixture(t)
	f.signUp(t)

	rec := f.do(t, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON(t, rec)
	require.NotNil(t, body["session"])
	profile := body["profile"].(map[string]any)
	require.Equal(t, "user", profile["role"])
}
