// Package registry discovers which remote modules exist and where they
// are served from.
package registry

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jrsteele09/go-module-shell/internal/config"
)

// RemoteEntry describes one independently deployed remote module.
type RemoteEntry struct {
	Name           string            `json:"name" yaml:"name"`                     // Runtime-unique identifier used by the federation runtime
	Entry          string            `json:"entry" yaml:"entry"`                   // Manifest/bundle URL
	ActiveWhenPath string            `json:"activeWhenPath" yaml:"activeWhenPath"` // Shell route prefix the module is mounted on
	Exposes        map[string]string `json:"exposes,omitempty" yaml:"exposes,omitempty"`
}

// RemoteRegistry is keyed by a stable slug distinct from RemoteEntry.Name.
// Values are never mutated in place; helpers return new registries.
type RemoteRegistry struct {
	Remotes map[string]RemoteEntry `json:"remotes" yaml:"remotes"`
}

// Candidate is a registry entry that can be handed to the federation
// runtime.
type Candidate struct {
	Slug  string
	Name  string
	Entry string
}

// IsZero reports whether the registry holds no remotes.
func (r RemoteRegistry) IsZero() bool {
	return len(r.Remotes) == 0
}

// Slugs returns the registry keys in sorted order.
func (r RemoteRegistry) Slugs() []string {
	slugs := make([]string, 0, len(r.Remotes))
	for slug := range r.Remotes {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Candidates returns the entries carrying both a name and an entry URL,
// ordered by slug. Malformed entries are skipped.
func (r RemoteRegistry) Candidates() []Candidate {
	var candidates []Candidate
	for _, slug := range r.Slugs() {
		entry := r.Remotes[slug]
		name := strings.TrimSpace(entry.Name)
		url := strings.TrimSpace(entry.Entry)
		if name == "" || url == "" {
			continue
		}
		candidates = append(candidates, Candidate{Slug: slug, Name: name, Entry: url})
	}
	return candidates
}

// Clone returns a deep copy.
func (r RemoteRegistry) Clone() RemoteRegistry {
	out := RemoteRegistry{Remotes: make(map[string]RemoteEntry, len(r.Remotes))}
	for slug, entry := range r.Remotes {
		exposes := make(map[string]string, len(entry.Exposes))
		for k, v := range entry.Exposes {
			exposes[k] = v
		}
		entry.Exposes = exposes
		out.Remotes[slug] = entry
	}
	return out
}

// Merge returns a new registry holding the entries of base overlaid by
// the entries of top.
func Merge(base, top RemoteRegistry) RemoteRegistry {
	out := base.Clone()
	for slug, entry := range top.Clone().Remotes {
		out.Remotes[slug] = entry
	}
	return out
}

// OverrideVar returns the environment variable that overrides the entry
// URL of the remote with the given name: "remoteDashboard" and
// "remote-dashboard" both map to "REMOTE_DASHBOARD_URL".
func OverrideVar(name string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(name))
	lastUnderscore := true
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && i > 0 && !lastUnderscore {
				prev := runes[i-1]
				if unicode.IsLower(prev) || unicode.IsDigit(prev) {
					b.WriteRune('_')
				}
			}
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	key := strings.TrimSuffix(b.String(), "_")
	return key + "_URL"
}

// EffectiveEntry returns the entry URL for e after applying its
// <NAME>_URL override, if env provides a valid http(s) one.
func EffectiveEntry(e RemoteEntry, env config.Env) string {
	if e.Name != "" {
		if override := config.Value(env, OverrideVar(e.Name)); override != "" && isHTTPURL(override) {
			return override
		}
	}
	return e.Entry
}

// ApplyEnvOverrides returns a new registry in which every remote with a
// valid <NAME>_URL override points at the overriding URL.
func ApplyEnvOverrides(r RemoteRegistry, env config.Env) RemoteRegistry {
	out := r.Clone()
	for slug, entry := range out.Remotes {
		entry.Entry = EffectiveEntry(entry, env)
		out.Remotes[slug] = entry
	}
	return out
}
