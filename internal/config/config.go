package config

type Config interface {
	EnvConfig
	CorsConfig
	ProviderConfig
	FederatedConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetDatabaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// ProviderConfig describes the hosted password/email identity backend.
// The anon key authenticates ordinary client calls; the service key is the
// elevated credential used only by the server-side token verifier.
type ProviderConfig interface {
	GetBackendURL() string
	GetBackendAnonKey() string
	GetBackendServiceKey() string
	GetBackendJWTSecret() string
}

// FederatedConfig describes the federated OAuth/phone identity backend.
type FederatedConfig interface {
	GetFederatedIssuer() string
	GetFederatedAPIKey() string
	GetFederatedProjectID() string
	GetFederatedAppID() string
	GetFederatedClientSecret() string
	GetFederatedRedirectURL() string
}

type mainConfig struct {
	EnvVars
	Cors
	Provider
	Federated
}

func New() Config {
	return mainConfig{}
}
