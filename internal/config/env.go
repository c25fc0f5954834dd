package config

import (
	"os"
	"strings"
)

// Env is a read-only view of environment variables.
type Env interface {
	Get(key string) (string, bool)
}

// OSEnv reads from the process environment.
type OSEnv struct{}

func (OSEnv) Get(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv is a fixed environment, mostly useful in tests and for
// build-time injected values.
type MapEnv map[string]string

func (m MapEnv) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Value returns the trimmed value of key, or "" when unset.
func Value(env Env, key string) string {
	if env == nil {
		return ""
	}
	v, _ := env.Get(key)
	return strings.TrimSpace(v)
}

// Layered looks keys up in each env in turn; the first that has the key
// wins.
func Layered(envs ...Env) Env {
	return layeredEnv(envs)
}

type layeredEnv []Env

func (l layeredEnv) Get(key string) (string, bool) {
	for _, env := range l {
		if env == nil {
			continue
		}
		if v, ok := env.Get(key); ok {
			return v, true
		}
	}
	return "", false
}
