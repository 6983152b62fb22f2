// Package federated implements the OAuth/phone identity backend: an OIDC
// authorization-code flow for the popup/redirect sign-in and an OTP flow
// for phone sign-in.
package federated

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/internal/config"
)

// Client implements identity.FederatedBackend against an OIDC issuer.
// Issuer discovery is deferred to the first call so that missing
// configuration surfaces as a provider error at call time, not a crash at
// startup.
type Client struct {
	issuer       string
	clientID     string
	clientSecret string
	redirectURL  string
	log          zerolog.Logger

	initOnce sync.Once
	initErr  error
	provider *oidc.Provider
	oauth    *oauth2.Config

	otp *otpFlow
}

var _ identity.FederatedBackend = (*Client)(nil)

// New builds a federated client from configuration. sender delivers OTP
// codes; a nil sender disables the phone flow.
func New(cfg config.FederatedConfig, sender CodeSender, log zerolog.Logger) *Client {
	c := &Client{
		issuer:       cfg.GetFederatedIssuer(),
		clientID:     cfg.GetFederatedAppID(),
		clientSecret: cfg.GetFederatedClientSecret(),
		redirectURL:  cfg.GetFederatedRedirectURL(),
		log:          log,
	}
	if sender != nil {
		c.otp = newOTPFlow(sender, log)
	}
	return c
}

func (c *Client) init(ctx context.Context) error {
	c.initOnce.Do(func() {
		if c.issuer == "" || c.clientID == "" {
			c.initErr = errors.New("[federated.init] issuer or app id not configured")
			return
		}
		provider, err := oidc.NewProvider(ctx, c.issuer)
		if err != nil {
			c.initErr = errors.Wrap(err, "[federated.init] issuer discovery")
			return
		}
		c.provider = provider
		c.oauth = &oauth2.Config{
			ClientID:     c.clientID,
			ClientSecret: c.clientSecret,
			RedirectURL:  c.redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}
	})
	return c.initErr
}

// AuthCodeURL implements identity.FederatedBackend. It returns an empty
// string when the provider is unreachable; Exchange reports the error.
func (c *Client) AuthCodeURL(state, nonce string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.init(ctx); err != nil {
		c.log.Warn().Err(err).Msg("federated provider unavailable")
		return ""
	}
	return c.oauth.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange implements identity.FederatedBackend: code for tokens, then
// ID-token verification including the nonce.
func (c *Client) Exchange(ctx context.Context, code, nonce string) (*identity.Grant, error) {
	if err := c.init(ctx); err != nil {
		return nil, identity.WrapFailure(identity.KindNetworkOrProvider, identity.MsgProviderError, err)
	}

	oauth2Token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, identity.WrapFailure(identity.KindNetworkOrProvider, "code exchange failed", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, identity.NewFailure(identity.KindNetworkOrProvider, "no ID token in response")
	}

	idToken, err := c.provider.Verifier(&oidc.Config{ClientID: c.clientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, identity.WrapFailure(identity.KindMissingOrExpiredToken, identity.MsgMissingToken, err)
	}

	var claims struct {
		Nonce   string `json:"nonce"`
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, identity.WrapFailure(identity.KindNetworkOrProvider, "extract claims", err)
	}

	if nonce != "" && claims.Nonce != nonce {
		return nil, identity.NewFailure(identity.KindInvalidCredentials, "invalid nonce")
	}

	return &identity.Grant{
		Record: identity.Record{
			ID:          claims.Sub,
			Email:       claims.Email,
			DisplayName: claims.Name,
			AvatarURL:   claims.Picture,
		},
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		ExpiresAt:    oauth2Token.Expiry,
		Source:       identity.SourceFederated,
	}, nil
}

// SendCode implements identity.FederatedBackend.
func (c *Client) SendCode(ctx context.Context, e164Phone string) (*identity.Confirmation, error) {
	if c.otp == nil {
		return nil, identity.NewFailure(identity.KindNetworkOrProvider, "phone sign-in not configured")
	}
	return c.otp.send(ctx, e164Phone)
}

// ConfirmCode implements identity.FederatedBackend.
func (c *Client) ConfirmCode(ctx context.Context, confirmation *identity.Confirmation, code string) (*identity.Grant, error) {
	if c.otp == nil {
		return nil, identity.NewFailure(identity.KindNetworkOrProvider, "phone sign-in not configured")
	}
	return c.otp.confirm(ctx, confirmation, code)
}
