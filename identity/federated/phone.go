package federated

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/CSU-AIML/neuraverse/identity"
)

const (
	otpLength      = 6
	otpTTL         = 5 * time.Minute
	maxOTPAttempts = 3
)

// CodeSender delivers a one-time code to a phone number. Implementations
// wrap the provider's SMS gateway.
type CodeSender interface {
	Send(ctx context.Context, e164Phone, code string) error
}

type pendingCode struct {
	phone     string
	code      string
	expiresAt time.Time
	attempts  int
}

// otpFlow holds in-flight confirmations. Handles are process-local and
// consumed at most once, mirroring the confirmation object the upstream
// SDK keeps in memory.
type otpFlow struct {
	sender  CodeSender
	log     zerolog.Logger
	nowTime func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingCode
}

func newOTPFlow(sender CodeSender, log zerolog.Logger) *otpFlow {
	return &otpFlow{
		sender:  sender,
		log:     log,
		nowTime: time.Now,
		pending: make(map[string]*pendingCode),
	}
}

func (f *otpFlow) send(ctx context.Context, e164Phone string) (*identity.Confirmation, error) {
	code, err := generateCode(otpLength)
	if err != nil {
		return nil, identity.WrapFailure(identity.KindNetworkOrProvider, "generate code", err)
	}

	if err := f.sender.Send(ctx, e164Phone, code); err != nil {
		return nil, identity.WrapFailure(identity.KindNetworkOrProvider, identity.MsgProviderError, err)
	}

	conf := &identity.Confirmation{
		ID:        uuid.New().String(),
		Phone:     e164Phone,
		ExpiresAt: f.nowTime().Add(otpTTL),
	}

	f.mu.Lock()
	f.pending[conf.ID] = &pendingCode{phone: e164Phone, code: code, expiresAt: conf.ExpiresAt}
	f.mu.Unlock()

	return conf, nil
}

func (f *otpFlow) confirm(_ context.Context, conf *identity.Confirmation, code string) (*identity.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending, ok := f.pending[conf.ID]
	if !ok {
		return nil, identity.NewFailure(identity.KindMissingOrExpiredToken, "verification code expired or already used")
	}

	if f.nowTime().After(pending.expiresAt) {
		delete(f.pending, conf.ID)
		return nil, identity.NewFailure(identity.KindMissingOrExpiredToken, "verification code expired or already used")
	}

	if subtle.ConstantTimeCompare([]byte(pending.code), []byte(code)) != 1 {
		pending.attempts++
		if pending.attempts >= maxOTPAttempts {
			delete(f.pending, conf.ID)
		}
		return nil, identity.NewFailure(identity.KindInvalidCredentials, "incorrect verification code")
	}

	// Consumed: the handle is single use.
	delete(f.pending, conf.ID)

	return &identity.Grant{
		Record: identity.Record{
			ID:    "phone:" + pending.phone,
			Phone: pending.phone,
		},
		ExpiresAt: f.nowTime().Add(time.Hour),
		Source:    identity.SourceFederated,
	}, nil
}

func generateCode(length int) (string, error) {
	code := ""
	for range length {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		code += fmt.Sprintf("%d", n.Int64())
	}
	return code, nil
}
