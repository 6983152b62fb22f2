package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CSU-AIML/neuraverse/security"
	"github.com/CSU-AIML/neuraverse/server/flowstate"
)

// FederatedStartHandler begins the federated sign-in flow by redirecting
// to the provider's consent page. State and nonce are minted here and the
// nonce is held server-side, keyed by state, until the callback.
func (s *Server) FederatedStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()
		nonce := uuid.NewString()

		authURL, err := s.deps.Adapter.FederatedSignInURL(state, nonce)
		if err != nil {
			writeFailure(w, err)
			return
		}

		_ = s.authState.Upsert(state, &flowstate.State{
			Nonce:     nonce,
			ReturnURL: safeReturnURL(r.URL.Query().Get("return_to")),
			CreatedAt: time.Now(),
		})

		http.Redirect(w, r, authURL, http.StatusSeeOther)
	}
}

// FederatedCallbackHandler completes the flow when the provider redirects
// back with a code. The state parameter is single use; replaying a
// callback fails the state lookup.
func (s *Server) FederatedCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			s.log.Warn().Str("error", errParam).Msg("federated provider returned an error")
			http.Redirect(w, r, RouteSignIn, http.StatusSeeOther)
			return
		}

		state, err := s.authState.Consume(r.URL.Query().Get("state"))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid or expired sign-in state"})
			return
		}

		grant, err := s.deps.Adapter.CompleteFederatedSignIn(r.Context(), r.URL.Query().Get("code"), state.Nonce)
		if err != nil {
			writeFailure(w, err)
			return
		}

		s.deps.Recorder.Record(r.Context(), security.EventSignIn, grant.Record.ID, map[string]any{
			"email":     grant.Record.Email,
			"federated": true,
		})
		s.deps.Sessions.RefreshUser(r.Context())

		target := state.ReturnURL
		if target == "" {
			target = RouteLanding
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// safeReturnURL only accepts same-site relative paths, preventing open
// redirects through the return_to parameter.
func safeReturnURL(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	return raw
}
