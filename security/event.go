// Package security keeps the append-only audit trail of auth-relevant
// actions. Event writes are best-effort everywhere: a failure to record is
// logged locally and never propagated to the operation that triggered it.
package security

import (
	"context"
	"time"
)

// Event types written by this system. account_blocked is only ever read
// here; it is written by an operator and un-blocking means deleting the
// row out of band.
const (
	EventSignIn          = "sign_in"
	EventSignOut         = "sign_out"
	EventPasswordReset   = "password_reset"
	EventTokenValidation = "token_validation"
	EventAccountBlocked  = "account_blocked"
)

// Event is one row of security_events. Rows are never updated or deleted
// by this system.
type Event struct {
	Type      string
	UserID    string
	Details   map[string]any
	CreatedAt time.Time
}

// Repo is the storage contract for security_events.
type Repo interface {
	Append(ctx context.Context, event Event) error
	Exists(ctx context.Context, userID, eventType string) (bool, error)
}
