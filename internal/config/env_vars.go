package config

import (
	"fmt"
	"strings"
)

const (
	portEnvVar         = "PORT"
	appNameVar         = "APP_NAME"
	folderEnvVar       = "FOLDER"
	logLevelVar        = "LOG_LEVEL"
	shellNameVar       = "SHELL_NAME"
	apiURLVar          = "API_URL"
	registryURLVar     = "REGISTRY_URL"
	defaultsFileVar    = "REMOTES_DEFAULTS_FILE"
	ShellURLVar        = "SHELL_URL"
	AllowedOriginsVar  = "ALLOWED_ORIGINS"
	RefreshCookieVar   = "REFRESH_COOKIE"
	defaultShellURL    = "http://localhost:3000"
	registryWellKnown  = "/.well-known/remotes.json"
	defaultDefaultsYML = "remotes.defaults.yaml"
)

type EnvVars struct {
	env Env
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) Lookup() Env {
	if e.env == nil {
		return OSEnv{}
	}
	return e.env
}

func (e EnvVars) GetPort() string {
	port := e.get(portEnvVar, "3000")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.get(appNameVar, "Module Shell")
}

func (e EnvVars) GetEnv() string {
	return e.get("ENV", "DEV")
}

func (e EnvVars) GetLogLevel() string {
	return e.get(logLevelVar, "info")
}

func (e EnvVars) GetDataFolder() string {
	return e.get(folderEnvVar, "./data")
}

// GetShellName is the name the shell's federation runtime instance is
// registered under.
func (e EnvVars) GetShellName() string {
	return e.get(shellNameVar, "shell")
}

// GetShellURL returns the canonical shell origin (e.g. "https://app.example.com").
func (e EnvVars) GetShellURL() string {
	return strings.TrimSuffix(e.get(ShellURLVar, defaultShellURL), "/")
}

// GetAPIURL is the backend that owns the refresh cookie contract.
func (e EnvVars) GetAPIURL() string {
	return strings.TrimSuffix(e.get(apiURLVar, e.GetShellURL()), "/")
}

// GetRefreshCookie returns the refresh cookie to seed the refresher's jar
// with, in Cookie header form ("name=value; other=value"). Empty when unset.
func (e EnvVars) GetRefreshCookie() string {
	return e.get(RefreshCookieVar, "")
}

func (e EnvVars) GetRegistryURL() string {
	return e.get(registryURLVar, e.GetShellURL()+registryWellKnown)
}

func (e EnvVars) GetDefaultsFile() string {
	return e.get(defaultsFileVar, e.GetDataFolder()+"/"+defaultDefaultsYML)
}

func (e EnvVars) get(key, defaultValue string) string {
	if v := Value(e.Lookup(), key); v != "" {
		return v
	}
	return defaultValue
}
