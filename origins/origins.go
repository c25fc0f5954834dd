// Package origins decides which origins may host or embed a remote module
// and which navigation targets are safe to redirect to.
package origins

import (
	"net/url"
	"sort"
	"strings"

	"github.com/jrsteele09/go-module-shell/internal/config"
	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/jrsteele09/go-module-shell/registry"
	"github.com/rs/zerolog/log"
)

// SeedOrigin is the default shell origin for local development.
const SeedOrigin = "http://localhost:3000"

// AllowedOrigins is a deduplicated set of normalized origins.
type AllowedOrigins map[string]struct{}
type nullValue = struct{}

// NewAllowedOrigins builds a set from raw origins, dropping invalid ones.
func NewAllowedOrigins(raw ...string) AllowedOrigins {
	a := AllowedOrigins{}
	for _, r := range raw {
		if origin, err := Normalize(r); err == nil {
			a[origin] = nullValue{}
		}
	}
	return a
}

// IsAllowedOrigin reports membership of origin, compared in normalized
// form. Unparseable input is never allowed.
func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	normalized, err := Normalize(origin)
	if err != nil {
		return false
	}
	_, ok := a[normalized]
	return ok
}

// With returns a new set holding a and the valid extra origins.
func (a AllowedOrigins) With(extra ...string) AllowedOrigins {
	out := make(AllowedOrigins, len(a)+len(extra))
	for k := range a {
		out[k] = nullValue{}
	}
	for k := range NewAllowedOrigins(extra...) {
		out[k] = nullValue{}
	}
	return out
}

// Sorted returns the origins in lexical order.
func (a AllowedOrigins) Sorted() []string {
	origins := make([]string, 0, len(a))
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return origins
}

func (a AllowedOrigins) String() string {
	return strings.Join(a.Sorted(), ", ")
}

// Normalize parses raw as a URL and returns its origin as
// scheme://host[:port]. Only http and https are admitted; default ports
// are elided the way browsers serialize an origin.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.ErrInvalidOrigin
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInvalidOrigin, "parse %q", raw)
	}
	return originOf(u)
}

func originOf(u *url.URL) (string, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", apperrors.Wrapf(apperrors.ErrInvalidOrigin, "scheme %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", apperrors.Wrapf(apperrors.ErrInvalidOrigin, "missing host")
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return scheme + "://" + host + ":" + port, nil
	}
	return scheme + "://" + host, nil
}

// Resolve derives the origins permitted to host or embed a module: the
// seed origin, SHELL_URL, every item of ALLOWED_ORIGINS, and the origin of
// every registry entry (after its <NAME>_URL override). Invalid entries
// are dropped. The result depends only on reg and env.
func Resolve(reg registry.RemoteRegistry, env config.Env) AllowedOrigins {
	allowed := AllowedOrigins{}
	add := func(source, raw string) {
		origin, err := Normalize(raw)
		if err != nil {
			log.Debug().Err(err).Str("source", source).Msg("dropping invalid origin")
			return
		}
		allowed[origin] = nullValue{}
	}

	add("seed", SeedOrigin)

	if shellURL := config.Value(env, config.ShellURLVar); shellURL != "" {
		add(config.ShellURLVar, shellURL)
	}

	for _, item := range strings.Split(config.Value(env, config.AllowedOriginsVar), ",") {
		if item = strings.TrimSpace(item); item != "" {
			add(config.AllowedOriginsVar, item)
		}
	}

	for _, slug := range reg.Slugs() {
		entry := reg.Remotes[slug]
		if effective := registry.EffectiveEntry(entry, env); strings.TrimSpace(effective) != "" {
			add("registry:"+slug, effective)
		}
	}

	return allowed
}
