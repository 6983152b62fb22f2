package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/CSU-AIML/neuraverse/identity"
	"github.com/CSU-AIML/neuraverse/identity/federated"
	"github.com/CSU-AIML/neuraverse/identity/hosted"
	"github.com/CSU-AIML/neuraverse/identity/localidp"
	"github.com/CSU-AIML/neuraverse/internal/config"
	"github.com/CSU-AIML/neuraverse/internal/pgdb"
	"github.com/CSU-AIML/neuraverse/profiles"
	"github.com/CSU-AIML/neuraverse/roles"
	"github.com/CSU-AIML/neuraverse/security"
	"github.com/CSU-AIML/neuraverse/server"
	"github.com/CSU-AIML/neuraverse/server/flowstate"
	"github.com/CSU-AIML/neuraverse/session"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	logger := newLogger(c)
	config.LogStartupWarnings(logger, c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, recorder, err := buildDeps(ctx, c, logger)
	if err != nil {
		return fmt.Errorf("buildDeps: %w", err)
	}
	deps.Sessions.Start(ctx)

	handler, err := server.New(c, deps, flowstate.NewInMemoryRepo(), logger)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()

	returnError = shutdown(httpServer)
	recorder.Wait()
	return returnError
}

// buildDeps wires the identity backends, storage and the session store.
// With no DATABASE_URL everything runs on in-memory repositories; with no
// backend URL in DEV a local in-process identity provider stands in so
// the service works without any external dependency.
func buildDeps(ctx context.Context, c config.Config, logger zerolog.Logger) (server.Deps, *security.Recorder, error) {
	var profileRepo profiles.Repo
	var securityRepo security.Repo

	if c.GetDatabaseURL() != "" {
		pool, err := pgdb.Connect(ctx, c.GetDatabaseURL())
		if err != nil {
			return server.Deps{}, nil, fmt.Errorf("pgdb.Connect: %w", err)
		}
		if err := pgdb.EnsureSchema(ctx, pool); err != nil {
			return server.Deps{}, nil, fmt.Errorf("pgdb.EnsureSchema: %w", err)
		}
		profileRepo = profiles.NewPGRepo(pool)
		securityRepo = security.NewPGRepo(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set; profiles and security events are in-memory")
		profileRepo = profiles.NewInMemoryRepo()
		securityRepo = security.NewInMemoryRepo()
	}

	var passwords identity.PasswordBackend
	var newIntrospector func() server.TokenIntrospector

	if c.GetBackendURL() != "" {
		passwords = hosted.New(c, logger)
		newIntrospector = func() server.TokenIntrospector { return hosted.NewElevated(c, logger) }
	} else {
		if c.GetEnv() != "DEV" {
			return server.Deps{}, nil, errors.New("AUTH_BACKEND_URL is required outside DEV")
		}
		logger.Warn().Msg("AUTH_BACKEND_URL not set; using the in-process identity provider")
		local := localidp.New()
		passwords = local
		newIntrospector = func() server.TokenIntrospector { return local }
	}

	var federatedBackend identity.FederatedBackend
	if c.GetFederatedAppID() != "" {
		federatedBackend = federated.New(c, loggedCodeSender{logger}, logger)
	}

	adapter, err := identity.NewAdapter(passwords, federatedBackend, identity.WithLogger(logger))
	if err != nil {
		return server.Deps{}, nil, err
	}

	resolver := roles.NewResolver(profiles.RoleReader(profileRepo), logger)
	synchronizer := profiles.NewSynchronizer(profileRepo, logger)
	recorder := security.NewRecorder(securityRepo, logger)

	store, err := session.NewStore(adapter, resolver, synchronizer, recorder, session.WithStoreLogger(logger))
	if err != nil {
		return server.Deps{}, nil, err
	}

	return server.Deps{
		Adapter:         adapter,
		Sessions:        store,
		Profiles:        profileRepo,
		Recorder:        recorder,
		Resolver:        resolver,
		NewIntrospector: newIntrospector,
	}, recorder, nil
}

// loggedCodeSender writes OTP codes to the log instead of sending SMS.
// Wiring a real SMS gateway is deployment specific; this keeps the phone
// flow usable in development.
type loggedCodeSender struct {
	log zerolog.Logger
}

func (s loggedCodeSender) Send(_ context.Context, e164Phone, code string) error {
	s.log.Info().Str("phone", e164Phone).Str("code", code).Msg("verification code issued")
	return nil
}

func newLogger(c config.Config) zerolog.Logger {
	if c.GetEnv() == "DEV" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
