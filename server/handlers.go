package server

import (
	"encoding/json"
	"net/http"

	"github.com/CSU-AIML/neuraverse/identity"
)

const contentTypeJSON = "application/json; charset=utf-8"

// IndexHandler reports service identity and status
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"app":    s.config.GetAppName(),
			"status": "ok",
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeFailure maps a normalized identity failure onto an HTTP error
// response. Messages are already user-safe; internal detail never leaves
// the adapter.
func writeFailure(w http.ResponseWriter, err error) {
	writeJSON(w, failureStatus(err), map[string]string{
		"error": failureMessage(err),
	})
}

func failureStatus(err error) int {
	switch identity.KindOf(err) {
	case identity.KindValidation:
		return http.StatusBadRequest
	case identity.KindInvalidCredentials:
		return http.StatusUnauthorized
	case identity.KindMissingOrExpiredToken:
		return http.StatusUnauthorized
	case identity.KindAlreadyRegistered:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func failureMessage(err error) string {
	if f, ok := identity.AsFailure(err); ok {
		return f.Message
	}
	return identity.MsgProviderError
}

// decodeBody parses a JSON request body into dst, rejecting unknown
// fields so client typos surface as 400s instead of silent drops.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
