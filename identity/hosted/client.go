// Package hosted implements the password/email identity backend over its
// REST API. The service is external and opaque; this client only speaks
// its wire shapes and maps its error responses onto the adapter's failure
// taxonomy.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/internal/config"
	"github.com/CSU-AIML/neuraverse/internal/utils"
)

// Client talks to the hosted password backend. The zero value is not
// usable; construct with New or NewElevated.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

var _ identity.PasswordBackend = (*Client)(nil)

// New builds a client authenticated with the anon key, for ordinary
// client-facing operations.
func New(cfg config.ProviderConfig, log zerolog.Logger) *Client {
	return newClient(cfg.GetBackendURL(), cfg.GetBackendAnonKey(), log)
}

// NewElevated builds a short-lived client authenticated with the service
// key. The token verifier constructs one of these per request.
func NewElevated(cfg config.ProviderConfig, log zerolog.Logger) *Client {
	return newClient(cfg.GetBackendURL(), cfg.GetBackendServiceKey(), log)
}

func newClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Wire shapes of the backend.

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	User         *userResponse `json:"user"`
}

type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignIn implements identity.PasswordBackend.
func (c *Client) SignIn(ctx context.Context, email, password string) (*identity.Grant, error) {
	body := map[string]string{"email": email, "password": password}
	var session sessionResponse
	if err := c.call(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &session); err != nil {
		return nil, signInFailure(err)
	}
	return c.grantFrom(session)
}

// SignUp implements identity.PasswordBackend.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*identity.Grant, error) {
	body := map[string]any{"email": email, "password": password, "data": metadata}
	var session sessionResponse
	if err := c.call(ctx, http.MethodPost, "/auth/v1/signup", "", body, &session); err != nil {
		return nil, err
	}
	return c.grantFrom(session)
}

// SignOut implements identity.PasswordBackend.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.call(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

// CurrentUser implements identity.PasswordBackend.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*identity.Record, error) {
	var user userResponse
	if err := c.call(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &user); err != nil {
		return nil, err
	}
	rec := recordFrom(user)
	return &rec, nil
}

// RequestPasswordReset implements identity.PasswordBackend. The backend
// answers 200 for unknown emails as well.
func (c *Client) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.call(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

// UpdatePassword implements identity.PasswordBackend. accessToken may be a
// session token or a one-time recovery token; the backend accepts both.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	return c.call(ctx, http.MethodPut, "/auth/v1/user", accessToken, map[string]string{"password": newPassword}, nil)
}

func (c *Client) grantFrom(session sessionResponse) (*identity.Grant, error) {
	if session.User == nil || session.User.ID == "" {
		return nil, identity.NewFailure(identity.KindNetworkOrProvider, "provider returned no user")
	}
	return &identity.Grant{
		Record:       recordFrom(*session.User),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(session.ExpiresIn) * time.Second),
		Source:       identity.SourcePassword,
	}, nil
}

// recordFrom normalizes the provider user shape. The role claim may live
// in app_metadata (set by the backend) or user_metadata (set at signup);
// app_metadata wins.
func recordFrom(user userResponse) identity.Record {
	rec := identity.Record{
		ID:    user.ID,
		Email: user.Email,
		Phone: user.Phone,
	}
	if name, ok := user.UserMetadata["name"].(string); ok {
		rec.DisplayName = name
	}
	if avatar, ok := user.UserMetadata["avatar_url"].(string); ok {
		rec.AvatarURL = avatar
	}
	if role, ok := user.UserMetadata["role"].(string); ok {
		rec.RoleClaim = role
	}
	if role, ok := user.AppMetadata["role"].(string); ok {
		rec.RoleClaim = role
	}
	if perms, ok := user.AppMetadata["permissions"].([]any); ok {
		rec.Permissions = utils.ToStringSlice(perms)
	}
	return rec
}

func (c *Client) call(ctx context.Context, method, path, bearer string, body, out any) error {
	if c.baseURL == "" {
		return identity.NewFailure(identity.KindNetworkOrProvider, "identity backend URL not configured")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return identity.WrapFailure(identity.KindNetworkOrProvider, "encode request", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return identity.WrapFailure(identity.KindNetworkOrProvider, "build request", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("identity backend unreachable")
		return identity.WrapFailure(identity.KindNetworkOrProvider, identity.MsgProviderError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return identity.WrapFailure(identity.KindNetworkOrProvider, "read response", err)
	}

	if resp.StatusCode >= 400 {
		return c.mapError(resp.StatusCode, raw, path)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return identity.WrapFailure(identity.KindNetworkOrProvider, "decode response", err)
		}
	}
	return nil
}

// mapError converts a backend error response into the failure taxonomy.
func (c *Client) mapError(status int, raw []byte, path string) error {
	var er errorResponse
	_ = json.Unmarshal(raw, &er)
	detail := er.text()

	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		if strings.HasPrefix(path, "/auth/v1/user") || strings.HasPrefix(path, "/auth/v1/logout") {
			return identity.NewFailure(identity.KindMissingOrExpiredToken, identity.MsgMissingToken)
		}
		return identity.NewFailure(identity.KindInvalidCredentials, identity.MsgInvalidCredentials)
	case status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return identity.NewFailure(identity.KindAlreadyRegistered, identity.MsgAlreadyRegistered)
	case status == http.StatusBadRequest:
		if strings.Contains(strings.ToLower(detail), "already registered") {
			return identity.NewFailure(identity.KindAlreadyRegistered, identity.MsgAlreadyRegistered)
		}
		return identity.NewFailure(identity.KindInvalidCredentials, identity.MsgInvalidCredentials)
	default:
		c.log.Warn().Int("status", status).Str("path", path).Str("detail", detail).Msg("identity backend error")
		return identity.NewFailure(identity.KindNetworkOrProvider, identity.MsgProviderError)
	}
}

// signInFailure keeps the sign-in error message generic: callers cannot
// distinguish a wrong password from an unknown email.
func signInFailure(err error) error {
	if f, ok := identity.AsFailure(err); ok && f.Kind == identity.KindInvalidCredentials {
		return identity.NewFailure(identity.KindInvalidCredentials, identity.MsgInvalidCredentials)
	}
	return err
}
