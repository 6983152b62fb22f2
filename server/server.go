package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/internal/config"
	"github.com/CSU-AIML/neuraverse/profiles"
	"github.com/CSU-AIML/neuraverse/roles"
	"github.com/CSU-AIML/neuraverse/security"
	"github.com/CSU-AIML/neuraverse/server/flowstate"
	"github.com/CSU-AIML/neuraverse/session"
)

// TokenIntrospector resolves an access token to its identity record using
// the elevated (service) key. The verify-token endpoint builds one lookup
// per request so callers never share the anon-key client's session state.
type TokenIntrospector interface {
	CurrentUser(ctx context.Context, accessToken string) (*identity.Record, error)
}

// Deps carries the collaborators the HTTP layer is wired to.
type Deps struct {
	Adapter  *identity.Adapter
	Sessions *session.Store
	Profiles profiles.Repo
	Recorder *security.Recorder
	Resolver *roles.Resolver

	// NewIntrospector returns a fresh elevated-key lookup for one
	// verify-token request.
	NewIntrospector func() TokenIntrospector
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	deps      Deps
	authState flowstate.Repo
	log       zerolog.Logger
}

func New(config config.Config, deps Deps, authState flowstate.Repo, log zerolog.Logger) (*Server, error) {
	if deps.Adapter == nil {
		return nil, fmt.Errorf("[Server New] identity adapter is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("[Server New] session store is required")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("[Server New] profile repository is required")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("[Server New] security recorder is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("[Server New] role resolver is required")
	}
	if authState == nil {
		authState = flowstate.NewInMemoryRepo()
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    config,
		deps:      deps,
		authState: authState,
		log:       log,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
