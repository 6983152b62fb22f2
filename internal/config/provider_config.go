package config

type Provider struct{}

var _ ProviderConfig = Provider{}

// GetBackendURL implements ProviderConfig.
func (Provider) GetBackendURL() string {
	return GetEnv("AUTH_BACKEND_URL", "")
}

// GetBackendAnonKey implements ProviderConfig.
func (Provider) GetBackendAnonKey() string {
	return GetEnv("AUTH_BACKEND_ANON_KEY", "")
}

// GetBackendServiceKey implements ProviderConfig.
func (Provider) GetBackendServiceKey() string {
	return GetEnv("AUTH_BACKEND_SERVICE_KEY", "")
}

// GetBackendJWTSecret implements ProviderConfig.
func (Provider) GetBackendJWTSecret() string {
	return GetEnv("AUTH_BACKEND_JWT_SECRET", "")
}

type Federated struct{}

var _ FederatedConfig = Federated{}

// GetFederatedIssuer implements FederatedConfig.
func (Federated) GetFederatedIssuer() string {
	return GetEnv("FEDERATED_ISSUER", "https://accounts.google.com")
}

// GetFederatedAPIKey implements FederatedConfig.
func (Federated) GetFederatedAPIKey() string {
	return GetEnv("FEDERATED_API_KEY", "")
}

// GetFederatedProjectID implements FederatedConfig.
func (Federated) GetFederatedProjectID() string {
	return GetEnv("FEDERATED_PROJECT_ID", "")
}

// GetFederatedAppID implements FederatedConfig.
func (Federated) GetFederatedAppID() string {
	return GetEnv("FEDERATED_APP_ID", "")
}

// GetFederatedClientSecret implements FederatedConfig.
func (Federated) GetFederatedClientSecret() string {
	return GetEnv("FEDERATED_CLIENT_SECRET", "")
}

// GetFederatedRedirectURL implements FederatedConfig.
func (Federated) GetFederatedRedirectURL() string {
	return GetEnv("FEDERATED_REDIRECT_URL", "")
}
