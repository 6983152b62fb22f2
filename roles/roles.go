// Package roles resolves a user's authorization role from provider
// metadata and the persisted profile mirror.
package roles

// Role is the coarse authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Parse returns the Role for s and whether s is a valid role value.
func Parse(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	}
	return "", false
}
