package identity

import (
	"context"
	"time"
)

// Auth-change event kinds emitted by the adapter. They mirror the
// notification stream of the hosted identity backend.
const (
	EventSignedIn    EventKind = "SIGNED_IN"
	EventSignedOut   EventKind = "SIGNED_OUT"
	EventUserUpdated EventKind = "USER_UPDATED"
)

type EventKind string

// Event is a single auth-state notification. Grant is populated on
// SIGNED_IN and nil otherwise.
type Event struct {
	Kind  EventKind
	Grant *Grant
}

// Record is the normalized identity record exposed to the rest of the
// system. Provider-specific shapes are rejected or normalized at the
// adapter boundary; nothing downstream sees a raw provider payload.
type Record struct {
	ID          string // provider-issued subject id
	Email       string
	Phone       string
	DisplayName string
	AvatarURL   string
	RoleClaim   string // optional role claim from provider metadata
	Permissions []string
}

// Backend that issued a grant. Federated tokens cannot be introspected
// through the password backend, so the adapter needs to know where a
// grant came from when refreshing the current record.
const (
	SourcePassword  GrantSource = "password"
	SourceFederated GrantSource = "federated"
)

type GrantSource string

// Grant is the payload of a successful sign-in or sign-up: the normalized
// record plus the provider-issued tokens backing the session.
type Grant struct {
	Record       Record
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Source       GrantSource
}

// Confirmation is the handle returned by the phone OTP flow. It is held
// in-process by the federated backend and consumed at most once.
type Confirmation struct {
	ID        string
	Phone     string
	ExpiresAt time.Time
}

// PasswordBackend is the outbound contract of the hosted password/email
// identity service. Implementations return *Failure errors only.
type PasswordBackend interface {
	SignIn(ctx context.Context, email, password string) (*Grant, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Grant, error)
	SignOut(ctx context.Context, accessToken string) error
	CurrentUser(ctx context.Context, accessToken string) (*Record, error)
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// FederatedBackend is the outbound contract of the federated OAuth/phone
// identity service.
type FederatedBackend interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (*Grant, error)
	SendCode(ctx context.Context, e164Phone string) (*Confirmation, error)
	ConfirmCode(ctx context.Context, confirmation *Confirmation, code string) (*Grant, error)
}
