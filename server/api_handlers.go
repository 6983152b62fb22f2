package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/CSU-AIML/neuraverse/internal/utils"
	"github.com/CSU-AIML/neuraverse/profiles"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type profileResponse struct {
	ID          string     `json:"id"`
	Role        string     `json:"role"`
	DisplayName string     `json:"displayName,omitempty"`
	LastSignIn  *time.Time `json:"lastSignIn,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func profileFrom(p *profiles.Profile) profileResponse {
	resp := profileResponse{
		ID:          p.ID,
		Role:        string(p.Role),
		DisplayName: p.DisplayName,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if !p.LastSignIn.IsZero() {
		resp.LastSignIn = utils.Ptr(p.LastSignIn)
	}
	return resp
}

// MeHandler returns the caller's session and stored profile
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.deps.Sessions.Current()
		if snap.User == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Sign in required"})
			return
		}

		body := map[string]any{"session": snapshotResponse(snap)}

		profile, err := s.deps.Profiles.Get(r.Context(), snap.User.UserID)
		switch {
		case err == nil:
			body["profile"] = profileFrom(profile)
		case errors.Is(err, profiles.ErrNotFound):
			// Profile sync is best-effort; the row may not exist yet.
		default:
			s.log.Warn().Err(err).Str("user_id", snap.User.UserID).Msg("profile lookup failed")
		}

		writeJSON(w, http.StatusOK, body)
	}
}

// AdminUsersHandler lists stored profiles with offset/limit paging
func (s *Server) AdminUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", defaultListLimit)
		if limit < 1 || limit > maxListLimit {
			limit = defaultListLimit
		}
		if offset < 0 {
			offset = 0
		}

		list, total, err := s.deps.Profiles.List(r.Context(), offset, limit)
		if err != nil {
			s.log.Error().Err(err).Msg("profile listing failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list users"})
			return
		}

		users := make([]profileResponse, 0, len(list))
		for _, p := range list {
			users = append(users, profileFrom(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"users":  users,
			"total":  total,
			"offset": offset,
			"limit":  limit,
		})
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
