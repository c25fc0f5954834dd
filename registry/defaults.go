package registry

import (
	"context"
	"os"

	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LoadDefaults reads the statically configured remotes shipped with the
// shell. The file uses the registry document layout in YAML.
func LoadDefaults(path string) (RemoteRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RemoteRegistry{}, apperrors.Wrapf(apperrors.ErrDefaultsLoad, "[Registry LoadDefaults] read %s: %v", path, err)
	}
	return ParseDefaults(data)
}

// ParseDefaults decodes a YAML defaults document.
func ParseDefaults(data []byte) (RemoteRegistry, error) {
	var reg RemoteRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return RemoteRegistry{}, apperrors.Wrapf(apperrors.ErrDefaultsLoad, "[Registry ParseDefaults] %v", err)
	}
	if reg.Remotes == nil {
		reg.Remotes = map[string]RemoteEntry{}
	}
	return reg.Clone(), nil
}

// Fetcher is satisfied by Client.
type Fetcher interface {
	FetchRegistry(ctx context.Context) (RemoteRegistry, error)
}

// FetchOrDefault returns the fetched registry, or defaults when the
// registry is unavailable. The boolean reports whether the dynamic
// registry was used.
func FetchOrDefault(ctx context.Context, f Fetcher, defaults RemoteRegistry) (RemoteRegistry, bool) {
	reg, err := f.FetchRegistry(ctx)
	if err != nil {
		log.Warn().Err(err).Int("defaults", len(defaults.Remotes)).Msg("registry unavailable, using static defaults")
		return defaults.Clone(), false
	}
	return reg, true
}
