// Package guard makes route-access decisions from the live session
// snapshot. It is pure decision logic; the HTTP layer maps decisions onto
// responses.
package guard

import (
	"net/url"
	"strings"

	"github.com/CSU-AIML/neuraverse/session"
)

// Route describes the protection level of a view.
type Route struct {
	Public    bool
	AdminOnly bool
}

// Decision is the outcome of evaluating a route against session state.
type Decision int

const (
	// Allow grants access.
	Allow Decision = iota
	// Defer means a resolution pass is in flight: render a loading
	// placeholder and make no access decision. Never treated as
	// unauthenticated.
	Defer
	// RedirectSignIn denies and sends the visitor to the sign-in page.
	RedirectSignIn
	// DenyAdmin denies an admin-only route to a non-admin session; the
	// caller shows an access-denied view and then redirects to the
	// default authenticated landing page.
	DenyAdmin
)

// Decide evaluates route access. The recovery-token bypass comes first: a
// visitor following a password-recovery link is allowed through
// unconditionally, even with no session at all. Loading defers any route,
// protected or not.
func Decide(route Route, snap session.Snapshot, u *url.URL) Decision {
	if HasRecoveryMarker(u) {
		return Allow
	}
	if snap.IsLoading {
		return Defer
	}
	if route.Public {
		return Allow
	}
	if snap.User == nil {
		return RedirectSignIn
	}
	if route.AdminOnly && !snap.IsAdmin() {
		return DenyAdmin
	}
	return Allow
}

// HasRecoveryMarker reports whether u carries a one-time recovery-token
// marker: `access_token=...&type=recovery` in the fragment, or an
// access_token query parameter.
func HasRecoveryMarker(u *url.URL) bool {
	_, ok := RecoveryToken(u)
	return ok
}

// RecoveryToken extracts the recovery token embedded in u by the identity
// provider's reset link. The token must be stripped from the visible URL
// immediately after consumption to prevent replay from browser history.
func RecoveryToken(u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}

	if frag := u.Fragment; frag != "" {
		values, err := url.ParseQuery(strings.TrimPrefix(frag, "#"))
		if err == nil {
			token := values.Get("access_token")
			if token != "" && values.Get("type") == "recovery" {
				return token, true
			}
		}
	}

	if token := u.Query().Get("access_token"); token != "" {
		return token, true
	}

	return "", false
}
