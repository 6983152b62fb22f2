package server

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CSU-AIML/neuraverse/security"
)

// CORS headers attached to every verify-token response, preflight
// included. Other backends call this endpoint server-to-server; browser
// callers send authorization, x-client-info and apikey headers.
var verifyTokenCORS = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type",
}

// VerifyTokenHandler introspects a bearer token and reports the caller's
// identity, role and permissions. Every failure mode answers with
// valid:false; nothing here ever surfaces a raw provider error.
func (s *Server) VerifyTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for k, v := range verifyTokenCORS {
			w.Header().Set(k, v)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Msg("token verification panicked")
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"valid": false,
					"error": "Internal server error",
				})
			}
		}()

		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"valid": false,
				"error": "Missing authorization header",
			})
			return
		}

		// Cheap local signature check before the provider round-trip,
		// when the signing secret is configured.
		if secret := s.config.GetBackendJWTSecret(); secret != "" {
			if err := checkSignature(token, secret); err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"valid": false,
					"error": "Invalid or expired token",
				})
				return
			}
		}

		rec, err := s.deps.NewIntrospector().CurrentUser(r.Context(), token)
		if err != nil || rec == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"valid": false,
				"error": "Invalid or expired token",
			})
			return
		}

		blocked, err := s.deps.Recorder.Blocked(r.Context(), rec.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", rec.ID).Msg("block-list lookup failed")
		}
		if blocked {
			s.deps.Recorder.RecordAsync(security.EventTokenValidation, rec.ID, map[string]any{
				"valid":   false,
				"blocked": true,
			})
			writeJSON(w, http.StatusForbidden, map[string]any{
				"valid": false,
				"error": "Account blocked",
			})
			return
		}

		role := s.deps.Resolver.Resolve(r.Context(), *rec)
		permissions := rec.Permissions
		if permissions == nil {
			permissions = []string{}
		}

		s.deps.Recorder.RecordAsync(security.EventTokenValidation, rec.ID, map[string]any{
			"valid": true,
			"role":  string(role),
		})

		writeJSON(w, http.StatusOK, map[string]any{
			"valid":       true,
			"userId":      rec.ID,
			"role":        string(role),
			"permissions": permissions,
		})
	}
}

// bearerToken extracts the token from the Authorization header. A header
// without the Bearer prefix is treated as the raw token.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

func checkSignature(token, secret string) error {
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	return err
}
