// Package localidp is an in-process password backend used in DEV mode and
// in tests. It implements the same contract as the hosted backend, with
// bcrypt-hashed passwords and opaque in-memory tokens.
package localidp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/CSU-AIML/neuraverse/identity"
)

const tokenTTL = time.Hour

type account struct {
	record       identity.Record
	passwordHash []byte
}

type issuedToken struct {
	accountID string
	recovery  bool
	expiresAt time.Time
}

// Provider is an in-memory identity.PasswordBackend.
type Provider struct {
	nowTime func() time.Time

	mu                sync.RWMutex
	accounts          map[string]*account // keyed by subject id
	emailIDs          map[string]string   // email -> subject id
	tokens            map[string]issuedToken
	lastRecoveryToken string
}

var _ identity.PasswordBackend = (*Provider)(nil)

func New() *Provider {
	return &Provider{
		nowTime:  time.Now,
		accounts: make(map[string]*account),
		emailIDs: make(map[string]string),
		tokens:   make(map[string]issuedToken),
	}
}

// WithNowTime overrides the clock (for testing expiry).
func (p *Provider) WithNowTime(now func() time.Time) *Provider {
	p.nowTime = now
	return p
}

// SignIn implements identity.PasswordBackend.
func (p *Provider) SignIn(_ context.Context, email, password string) (*identity.Grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, ok := p.emailIDs[email]
	if !ok {
		return nil, identity.NewFailure(identity.KindInvalidCredentials, identity.MsgInvalidCredentials)
	}
	acc := p.accounts[id]
	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)) != nil {
		return nil, identity.NewFailure(identity.KindInvalidCredentials, identity.MsgInvalidCredentials)
	}

	return p.issueLocked(acc, false), nil
}

// SignUp implements identity.PasswordBackend.
func (p *Provider) SignUp(_ context.Context, email, password string, metadata map[string]any) (*identity.Grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.emailIDs[email]; exists {
		return nil, identity.NewFailure(identity.KindAlreadyRegistered, identity.MsgAlreadyRegistered)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, identity.WrapFailure(identity.KindNetworkOrProvider, "hash password", err)
	}

	rec := identity.Record{ID: uuid.New().String(), Email: email}
	if role, ok := metadata["role"].(string); ok {
		rec.RoleClaim = role
	}
	if name, ok := metadata["name"].(string); ok {
		rec.DisplayName = name
	}

	acc := &account{record: rec, passwordHash: hash}
	p.accounts[rec.ID] = acc
	p.emailIDs[email] = rec.ID

	return p.issueLocked(acc, false), nil
}

// SignOut implements identity.PasswordBackend.
func (p *Provider) SignOut(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tokens, accessToken)
	return nil
}

// CurrentUser implements identity.PasswordBackend.
func (p *Provider) CurrentUser(_ context.Context, accessToken string) (*identity.Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tok, ok := p.tokens[accessToken]
	if !ok || p.nowTime().After(tok.expiresAt) {
		return nil, identity.NewFailure(identity.KindMissingOrExpiredToken, identity.MsgMissingToken)
	}
	acc, ok := p.accounts[tok.accountID]
	if !ok {
		return nil, identity.NewFailure(identity.KindMissingOrExpiredToken, identity.MsgMissingToken)
	}
	rec := acc.record
	return &rec, nil
}

// RequestPasswordReset implements identity.PasswordBackend. Like the
// hosted backend it reports success for unknown emails.
func (p *Provider) RequestPasswordReset(_ context.Context, email, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.emailIDs[email]
	if !ok {
		return nil
	}
	// The recovery link would carry this token; tests fetch it via
	// LastRecoveryToken.
	p.lastRecoveryToken = randomToken()
	p.tokens[p.lastRecoveryToken] = issuedToken{accountID: id, recovery: true, expiresAt: p.nowTime().Add(tokenTTL)}
	return nil
}

// UpdatePassword implements identity.PasswordBackend. Recovery tokens are
// invalidated on use; session tokens stay valid.
func (p *Provider) UpdatePassword(_ context.Context, accessToken, newPassword string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, ok := p.tokens[accessToken]
	if !ok || p.nowTime().After(tok.expiresAt) {
		return identity.NewFailure(identity.KindMissingOrExpiredToken, identity.MsgMissingToken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return identity.WrapFailure(identity.KindNetworkOrProvider, "hash password", err)
	}
	p.accounts[tok.accountID].passwordHash = hash

	if tok.recovery {
		delete(p.tokens, accessToken)
	}
	return nil
}

// SetRoleClaim updates the provider-side role metadata for an account.
// Mirrors an operator editing claims in the provider console.
func (p *Provider) SetRoleClaim(email, role string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.emailIDs[email]
	if !ok {
		return false
	}
	p.accounts[id].record.RoleClaim = role
	return true
}

// LastRecoveryToken returns the most recently issued recovery token.
func (p *Provider) LastRecoveryToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastRecoveryToken
}

func (p *Provider) issueLocked(acc *account, recovery bool) *identity.Grant {
	token := randomToken()
	expires := p.nowTime().Add(tokenTTL)
	p.tokens[token] = issuedToken{accountID: acc.record.ID, recovery: recovery, expiresAt: expires}
	rec := acc.record
	return &identity.Grant{Record: rec, AccessToken: token, ExpiresAt: expires, Source: identity.SourcePassword}
}

func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
