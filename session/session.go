// Package session owns the process-wide auth context: the single live
// session derived from the identity provider, the resolved role, and the
// loading flag consumed by the route guard.
package session

import (
	"github.com/CSU-AIML/neuraverse/roles"
)

// Session is the derived user state. Exactly one live Session exists per
// store; it is replaced wholesale on every auth-state transition and
// cleared entirely on sign-out.
type Session struct {
	UserID      string
	Email       string
	Role        roles.Role
	DisplayName string
	AvatarURL   string
}

// Snapshot is a consistent read of the store. User is nil when signed out.
// IsLoading true means a resolution pass is in flight and consumers must
// defer their access decision rather than treat the state as
// unauthenticated.
type Snapshot struct {
	User      *Session
	Role      roles.Role
	IsLoading bool
}

// IsAdmin reports whether the snapshot carries the admin role.
func (s Snapshot) IsAdmin() bool {
	return s.User != nil && s.Role == roles.RoleAdmin
}
