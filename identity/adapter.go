package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultCallTimeout = 10 * time.Second
	eventBufferSize    = 16
)

// Adapter unifies the two identity backends behind one provider-agnostic
// surface. All backend errors are normalized to *Failure; backend panics
// are caught and converted, so the adapter never throws across its
// boundary. Successful sign-in paths update the adapter-held grant (the
// mirror of the provider's own session storage) and emit an auth-change
// event.
type Adapter struct {
	passwords   PasswordBackend
	federated   FederatedBackend
	log         zerolog.Logger
	callTimeout time.Duration

	mu      sync.Mutex
	current *Grant

	events chan Event
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(log zerolog.Logger) AdapterOption {
	return func(a *Adapter) {
		a.log = log
	}
}

// WithCallTimeout overrides the per-call network timeout.
func WithCallTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		a.callTimeout = d
	}
}

// NewAdapter builds an adapter over the password backend and, optionally,
// a federated backend. federated may be nil when the deployment has no
// federated provider configured.
func NewAdapter(passwords PasswordBackend, federated FederatedBackend, options ...AdapterOption) (*Adapter, error) {
	if passwords == nil {
		return nil, errors.New("[NewAdapter] password backend is required")
	}

	a := &Adapter{
		passwords:   passwords,
		federated:   federated,
		log:         zerolog.Nop(),
		callTimeout: defaultCallTimeout,
		events:      make(chan Event, eventBufferSize),
	}

	for _, opt := range options {
		opt(a)
	}

	return a, nil
}

// Events returns the auth-change notification stream. The channel is
// buffered; events are dropped (and logged) rather than blocking a slow
// consumer.
func (a *Adapter) Events() <-chan Event {
	return a.events
}

// SignIn authenticates against the password backend.
func (a *Adapter) SignIn(ctx context.Context, email, password string) (grant *Grant, err error) {
	defer a.recoverFailure(&err, "SignIn")

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, NewFailure(KindValidation, "password is required")
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	grant, err = a.passwords.SignIn(ctx, email, password)
	if err != nil {
		return nil, a.normalize(err, "SignIn")
	}

	a.setCurrent(grant)
	a.emit(Event{Kind: EventSignedIn, Grant: grant})
	return grant, nil
}

// SignUp registers a new account. New accounts are created with a "user"
// role claim in their provider metadata unless the caller supplies one.
func (a *Adapter) SignUp(ctx context.Context, email, password string) (grant *Grant, err error) {
	defer a.recoverFailure(&err, "SignUp")

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	metadata := map[string]any{"role": "user"}
	grant, err = a.passwords.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, a.normalize(err, "SignUp")
	}

	a.setCurrent(grant)
	a.emit(Event{Kind: EventSignedIn, Grant: grant})
	return grant, nil
}

// SignOut clears the adapter-held grant and notifies subscribers
// immediately, then revokes the provider session best-effort. Local state
// is gone even when the revoke call fails.
func (a *Adapter) SignOut(ctx context.Context) (err error) {
	defer a.recoverFailure(&err, "SignOut")

	a.mu.Lock()
	grant := a.current
	a.current = nil
	a.mu.Unlock()

	a.emit(Event{Kind: EventSignedOut})

	if grant == nil {
		return nil
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	if err := a.passwords.SignOut(ctx, grant.AccessToken); err != nil {
		return a.normalize(err, "SignOut")
	}
	return nil
}

// CurrentUser fetches the identity record backing the adapter-held grant.
// A nil record with nil error means no one is signed in.
func (a *Adapter) CurrentUser(ctx context.Context) (rec *Record, err error) {
	defer a.recoverFailure(&err, "CurrentUser")

	a.mu.Lock()
	grant := a.current
	a.mu.Unlock()

	if grant == nil {
		return nil, nil
	}

	// Federated tokens are opaque to the password backend; the record
	// captured at exchange time is the freshest view we have.
	if grant.Source == SourceFederated {
		recCopy := grant.Record
		return &recCopy, nil
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	rec, err = a.passwords.CurrentUser(ctx, grant.AccessToken)
	if err != nil {
		return nil, a.normalize(err, "CurrentUser")
	}
	return rec, nil
}

// RequestPasswordReset asks the provider to email a one-time recovery
// link. The provider reports success for unknown emails too, so this
// cannot be used to enumerate accounts.
func (a *Adapter) RequestPasswordReset(ctx context.Context, email, redirectTo string) (err error) {
	defer a.recoverFailure(&err, "RequestPasswordReset")

	if err := ValidateEmail(email); err != nil {
		return err
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	if err := a.passwords.RequestPasswordReset(ctx, email, redirectTo); err != nil {
		return a.normalize(err, "RequestPasswordReset")
	}
	return nil
}

// UpdatePassword changes the password of the currently signed-in user.
func (a *Adapter) UpdatePassword(ctx context.Context, newPassword string) (err error) {
	defer a.recoverFailure(&err, "UpdatePassword")

	if err := ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	a.mu.Lock()
	grant := a.current
	a.mu.Unlock()

	if grant == nil {
		return NewFailure(KindMissingOrExpiredToken, MsgMissingToken)
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	if err := a.passwords.UpdatePassword(ctx, grant.AccessToken, newPassword); err != nil {
		return a.normalize(err, "UpdatePassword")
	}

	a.emit(Event{Kind: EventUserUpdated})
	return nil
}

// ResetPassword completes the password-recovery flow using a one-time
// recovery token instead of an established session.
func (a *Adapter) ResetPassword(ctx context.Context, recoveryToken, newPassword string) (err error) {
	defer a.recoverFailure(&err, "ResetPassword")

	if recoveryToken == "" {
		return NewFailure(KindMissingOrExpiredToken, MsgMissingToken)
	}
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	if err := a.passwords.UpdatePassword(ctx, recoveryToken, newPassword); err != nil {
		return a.normalize(err, "ResetPassword")
	}
	return nil
}

// FederatedSignInURL returns the provider URL to send the user to.
func (a *Adapter) FederatedSignInURL(state, nonce string) (string, error) {
	if a.federated == nil {
		return "", NewFailure(KindNetworkOrProvider, "federated provider not configured")
	}
	return a.federated.AuthCodeURL(state, nonce), nil
}

// CompleteFederatedSignIn exchanges the callback code for a grant.
func (a *Adapter) CompleteFederatedSignIn(ctx context.Context, code, nonce string) (grant *Grant, err error) {
	defer a.recoverFailure(&err, "CompleteFederatedSignIn")

	if a.federated == nil {
		return nil, NewFailure(KindNetworkOrProvider, "federated provider not configured")
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	grant, err = a.federated.Exchange(ctx, code, nonce)
	if err != nil {
		return nil, a.normalize(err, "CompleteFederatedSignIn")
	}

	a.setCurrent(grant)
	a.emit(Event{Kind: EventSignedIn, Grant: grant})
	return grant, nil
}

// SignInWithPhone normalizes the number to E.164 and starts the OTP flow.
func (a *Adapter) SignInWithPhone(ctx context.Context, phone string) (conf *Confirmation, err error) {
	defer a.recoverFailure(&err, "SignInWithPhone")

	if a.federated == nil {
		return nil, NewFailure(KindNetworkOrProvider, "federated provider not configured")
	}

	e164, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	conf, err = a.federated.SendCode(ctx, e164)
	if err != nil {
		return nil, a.normalize(err, "SignInWithPhone")
	}
	return conf, nil
}

// VerifyPhoneCode completes the OTP flow.
func (a *Adapter) VerifyPhoneCode(ctx context.Context, conf *Confirmation, code string) (grant *Grant, err error) {
	defer a.recoverFailure(&err, "VerifyPhoneCode")

	if a.federated == nil {
		return nil, NewFailure(KindNetworkOrProvider, "federated provider not configured")
	}
	if conf == nil {
		return nil, NewFailure(KindValidation, "confirmation handle is required")
	}
	if code == "" {
		return nil, NewFailure(KindValidation, "verification code is required")
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	grant, err = a.federated.ConfirmCode(ctx, conf, code)
	if err != nil {
		return nil, a.normalize(err, "VerifyPhoneCode")
	}

	a.setCurrent(grant)
	a.emit(Event{Kind: EventSignedIn, Grant: grant})
	return grant, nil
}

func (a *Adapter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.callTimeout)
}

func (a *Adapter) setCurrent(grant *Grant) {
	a.mu.Lock()
	a.current = grant
	a.mu.Unlock()
}

func (a *Adapter) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		a.log.Warn().Str("event", string(ev.Kind)).Msg("auth event dropped: subscriber too slow")
	}
}

// normalize guarantees a *Failure comes out of every backend call. Context
// deadline expiry surfaces as a network/provider failure.
func (a *Adapter) normalize(err error, op string) error {
	if f, ok := AsFailure(err); ok {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn().Str("op", op).Msg("identity provider call timed out")
		return WrapFailure(KindNetworkOrProvider, MsgProviderError, err)
	}
	a.log.Error().Err(err).Str("op", op).Msg("unexpected identity provider error")
	return WrapFailure(KindNetworkOrProvider, MsgProviderError, err)
}

func (a *Adapter) recoverFailure(err *error, op string) {
	if r := recover(); r != nil {
		a.log.Error().Str("op", op).Interface("panic", r).Msg("identity backend panicked")
		*err = NewFailure(KindNetworkOrProvider, fmt.Sprintf("provider panic in %s", op))
	}
}
