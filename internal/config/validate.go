package config

import "github.com/rs/zerolog"

// LogStartupWarnings reports missing provider configuration at startup.
// Missing values are never fatal here: the adapters are constructed lazily
// and surface a provider error on the first network call instead.
func LogStartupWarnings(log zerolog.Logger, cfg Config) {
	missing := func(name, value string) {
		if value == "" {
			log.Warn().Str("env", name).Msg("identity provider configuration missing; calls will fail until set")
		}
	}

	missing("AUTH_BACKEND_URL", cfg.GetBackendURL())
	missing("AUTH_BACKEND_ANON_KEY", cfg.GetBackendAnonKey())
	missing("AUTH_BACKEND_SERVICE_KEY", cfg.GetBackendServiceKey())
	missing("FEDERATED_API_KEY", cfg.GetFederatedAPIKey())
	missing("FEDERATED_PROJECT_ID", cfg.GetFederatedProjectID())
	missing("FEDERATED_APP_ID", cfg.GetFederatedAppID())

	if cfg.GetDatabaseURL() == "" {
		log.Warn().Msg("DATABASE_URL not set; using in-memory profile and security event storage")
	}
}
