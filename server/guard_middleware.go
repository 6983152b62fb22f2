package server

import (
	"net/http"

	"github.com/CSU-AIML/neuraverse/guard"
)

// Protect evaluates the route guard against the live session before the
// handler runs. A session still resolving defers with 202 rather than
// being treated as signed out.
func (s *Server) Protect(route guard.Route) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch guard.Decide(route, s.deps.Sessions.Current(), r.URL) {
			case guard.Allow:
				next(w, r)
			case guard.Defer:
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusAccepted, map[string]string{
					"status": "loading",
				})
			case guard.RedirectSignIn:
				w.Header().Set("Location", RouteSignIn)
				writeJSON(w, http.StatusSeeOther, map[string]string{
					"error":    "Sign in required",
					"redirect": RouteSignIn,
				})
			case guard.DenyAdmin:
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error":    "Admin access required",
					"redirect": RouteLanding,
				})
			}
		}
	}
}
