package guard_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CSU-AIML/neuraverse/guard"
	"github.com/CSU-AIML/neuraverse/roles"
	"github.com/CSU-AIML/neuraverse/session"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func userSnapshot(role roles.Role) session.Snapshot {
	return session.Snapshot{
		User: &session.Session{UserID: "user-1", Email: "john.doe@example.com", Role: role},
		Role: role,
	}
}

func TestDecide(t *testing.T) {
	plain := mustParse(t, "/dashboard")

	tests := []struct {
		name  string
		route guard.Route
		snap  session.Snapshot
		u     *url.URL
		want  guard.Decision
	}{
		{
			name:  "public route signed out",
			route: guard.Route{Public: true},
			snap:  session.Snapshot{},
			u:     plain,
			want:  guard.Allow,
		},
		{
			name:  "protected route signed out",
			route: guard.Route{},
			snap:  session.Snapshot{},
			u:     plain,
			want:  guard.RedirectSignIn,
		},
		{
			name:  "protected route signed in",
			route: guard.Route{},
			snap:  userSnapshot(roles.RoleUser),
			u:     plain,
			want:  guard.Allow,
		},
		{
			name:  "admin route as user",
			route: guard.Route{AdminOnly: true},
			snap:  userSnapshot(roles.RoleUser),
			u:     plain,
			want:  guard.DenyAdmin,
		},
		{
			name:  "admin route as admin",
			route: guard.Route{AdminOnly: true},
			snap:  userSnapshot(roles.RoleAdmin),
			u:     plain,
			want:  guard.Allow,
		},
		{
			name:  "loading defers public route",
			route: guard.Route{Public: true},
			snap:  session.Snapshot{IsLoading: true},
			u:     plain,
			want:  guard.Defer,
		},
		{
			name:  "loading defers admin route even for admin",
			route: guard.Route{AdminOnly: true},
			snap:  session.Snapshot{User: &session.Session{UserID: "user-1", Role: roles.RoleAdmin}, Role: roles.RoleAdmin, IsLoading: true},
			u:     plain,
			want:  guard.Defer,
		},
		{
			name:  "recovery marker bypasses with no session",
			route: guard.Route{},
			snap:  session.Snapshot{},
			u:     mustParse(t, "/auth/reset-password?access_token=one-time-token"),
			want:  guard.Allow,
		},
		{
			name:  "recovery marker bypasses even while loading",
			route: guard.Route{AdminOnly: true},
			snap:  session.Snapshot{IsLoading: true},
			u:     mustParse(t, "/auth/reset-password?access_token=one-time-token"),
			want:  guard.Allow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, guard.Decide(tt.route, tt.snap, tt.u))
		})
	}
}

func TestRecoveryTokenFromFragment(t *testing.T) {
	u := mustParse(t, "/auth/reset-password")
	u.Fragment = "access_token=one-time-token&type=recovery"

	token, ok := guard.RecoveryToken(u)
	require.True(t, ok)
	require.Equal(t, "one-time-token", token)

	// A fragment token without the recovery marker is not a bypass.
	u.Fragment = "access_token=one-time-token&type=magiclink"
	_, ok = guard.RecoveryToken(u)
	require.False(t, ok)
}

func TestRecoveryTokenFromQuery(t *testing.T) {
	token, ok := guard.RecoveryToken(mustParse(t, "/auth/reset-password?access_token=one-time-token"))
	require.True(t, ok)
	require.Equal(t, "one-time-token", token)

	_, ok = guard.RecoveryToken(mustParse(t, "/auth/reset-password"))
	require.False(t, ok)

	_, ok = guard.RecoveryToken(nil)
	require.False(t, ok)
}
