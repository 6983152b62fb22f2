package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/CSU-AIML/neuraverse/guard"
	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/security"
	"github.com/CSU-AIML/neuraverse/server/flowstate"
	"github.com/CSU-AIML/neuraverse/session"
)

const recoveryCookieName = "recovery_session"

type sessionUserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type sessionResponse struct {
	User      *sessionUserResponse `json:"user"`
	Role      string               `json:"role"`
	IsAdmin   bool                 `json:"isAdmin"`
	IsLoading bool                 `json:"isLoading"`
}

func snapshotResponse(snap session.Snapshot) sessionResponse {
	resp := sessionResponse{
		Role:      string(snap.Role),
		IsAdmin:   snap.IsAdmin(),
		IsLoading: snap.IsLoading,
	}
	if snap.User != nil {
		resp.User = &sessionUserResponse{
			ID:          snap.User.UserID,
			Email:       snap.User.Email,
			DisplayName: snap.User.DisplayName,
			AvatarURL:   snap.User.AvatarURL,
		}
	}
	return resp
}

// SignInHandler authenticates with email and password
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		if err := s.deps.Sessions.SignIn(r.Context(), req.Email, req.Password); err != nil {
			writeFailure(w, err)
			return
		}

		writeJSON(w, http.StatusOK, snapshotResponse(s.deps.Sessions.Current()))
	}
}

// SignUpHandler registers a new account and signs it in
func (s *Server) SignUpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		if err := s.deps.Sessions.SignUp(r.Context(), req.Email, req.Password); err != nil {
			writeFailure(w, err)
			return
		}

		writeJSON(w, http.StatusOK, snapshotResponse(s.deps.Sessions.Current()))
	}
}

// SignOutHandler clears the session. The local session is gone before the
// provider revoke call runs; a failed revoke is logged, not surfaced.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Sessions.SignOut(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("provider sign-out failed after local clear")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionHandler returns the current session snapshot
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, snapshotResponse(s.deps.Sessions.Current()))
	}
}

// ForgotPasswordHandler requests a password-recovery email. The response
// is identical whether or not the address has an account.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		redirectTo := s.config.GetBaseURL() + RouteResetPassword
		if err := s.deps.Adapter.RequestPasswordReset(r.Context(), req.Email, redirectTo); err != nil {
			writeFailure(w, err)
			return
		}

		s.deps.Recorder.Record(r.Context(), security.EventPasswordReset, "", map[string]any{
			"reset_requested": true,
			"email":           req.Email,
		})
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "If an account exists for that address, reset instructions have been sent",
		})
	}
}

// ResetPasswordGetHandler lands the recovery link. The one-time token is
// moved out of the URL into server-side flow state and the visitor is
// redirected to the clean path, so the token never survives in browser
// history.
func (s *Server) ResetPasswordGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token, ok := guard.RecoveryToken(r.URL); ok {
			nonce := uuid.NewString()
			_ = s.authState.Upsert(nonce, &flowstate.State{
				RecoveryToken: token,
				CreatedAt:     time.Now(),
			})
			http.SetCookie(w, s.recoveryCookie(nonce, 0))
			http.Redirect(w, r, RouteResetPassword, http.StatusSeeOther)
			return
		}

		if _, err := r.Cookie(recoveryCookieName); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    identity.MsgMissingToken,
				"redirect": RouteSignIn,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ResetPasswordPostHandler completes the recovery flow with the new
// password.
func (s *Server) ResetPasswordPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(recoveryCookieName)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    identity.MsgMissingToken,
				"redirect": RouteSignIn,
			})
			return
		}

		state, err := s.authState.Consume(cookie.Value)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    identity.MsgMissingToken,
				"redirect": RouteSignIn,
			})
			return
		}

		var req struct {
			Password string `json:"password"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		if err := s.deps.Adapter.ResetPassword(r.Context(), state.RecoveryToken, req.Password); err != nil {
			// A weak password should not burn the one-time link.
			if identity.KindOf(err) == identity.KindValidation {
				_ = s.authState.Upsert(cookie.Value, state)
			}
			writeFailure(w, err)
			return
		}

		s.deps.Recorder.Record(r.Context(), security.EventPasswordReset, "", map[string]any{
			"reset_completed": true,
		})
		http.SetCookie(w, s.recoveryCookie("", -1))
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Password updated. Please sign in with your new password",
		})
	}
}

// PhoneSendCodeHandler starts the phone OTP flow
func (s *Server) PhoneSendCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Phone string `json:"phone"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		conf, err := s.deps.Adapter.SignInWithPhone(r.Context(), req.Phone)
		if err != nil {
			writeFailure(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"confirmationId": conf.ID,
			"expiresAt":      conf.ExpiresAt,
		})
	}
}

// PhoneVerifyHandler completes the phone OTP flow
func (s *Server) PhoneVerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ConfirmationID string `json:"confirmationId"`
			Code           string `json:"code"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
			return
		}

		conf := &identity.Confirmation{ID: req.ConfirmationID}
		grant, err := s.deps.Adapter.VerifyPhoneCode(r.Context(), conf, req.Code)
		if err != nil {
			writeFailure(w, err)
			return
		}

		s.deps.Recorder.Record(r.Context(), security.EventSignIn, grant.Record.ID, map[string]any{"phone": grant.Record.Phone})
		s.deps.Sessions.RefreshUser(r.Context())
		writeJSON(w, http.StatusOK, snapshotResponse(s.deps.Sessions.Current()))
	}
}

func (s *Server) recoveryCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     recoveryCookieName,
		Value:    value,
		Path:     RouteResetPassword,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.env != "DEV",
		SameSite: http.SameSiteLaxMode,
	}
}
