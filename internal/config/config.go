package config

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	FederationConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
	GetShellName() string
	GetShellURL() string
	GetAPIURL() string
	GetRefreshCookie() string
	GetRegistryURL() string
	GetDefaultsFile() string
	// Lookup exposes the raw environment for components that derive
	// values from arbitrary keys (ALLOWED_ORIGINS, <REMOTE_NAME>_URL).
	Lookup() Env
}

type CorsConfig interface {
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Federation
}

func New() Config {
	return mainConfig{EnvVars: EnvVars{env: OSEnv{}}}
}

// NewFromEnv builds a Config that reads from env instead of the process
// environment.
func NewFromEnv(env Env) Config {
	return mainConfig{EnvVars: EnvVars{env: env}}
}
