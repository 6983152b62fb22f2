package identity

import (
	"errors"
	"fmt"
)

// FailureKind discriminates adapter failures. Every error crossing the
// adapter boundary carries exactly one of these kinds.
type FailureKind string

const (
	KindInvalidCredentials    FailureKind = "invalid_credentials"
	KindAlreadyRegistered     FailureKind = "already_registered"
	KindNetworkOrProvider     FailureKind = "network_or_provider_error"
	KindMissingOrExpiredToken FailureKind = "missing_or_expired_token"
	KindValidation            FailureKind = "validation_error"
)

// Failure is the normalized error shape of the identity provider adapter.
// Provider exceptions never escape the adapter raw; they are caught and
// converted to a Failure.
type Failure struct {
	Kind    FailureKind
	Message string
	cause   error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.cause }

func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// WrapFailure attaches a cause to a normalized failure for diagnostics.
// The cause is never shown to end users.
func WrapFailure(kind FailureKind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, cause: cause}
}

// AsFailure extracts the Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf reports the failure kind of err, defaulting to
// KindNetworkOrProvider for errors that did not originate in the adapter.
func KindOf(err error) FailureKind {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return KindNetworkOrProvider
}

// User-facing messages. Invalid credentials deliberately do not reveal
// whether the email exists (account enumeration).
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgAlreadyRegistered  = "An account with this email already exists"
	MsgProviderError      = "Something went wrong. Please try again"
	MsgMissingToken       = "Your reset link is invalid or has expired"
)
