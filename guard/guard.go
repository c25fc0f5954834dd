// Package guard gates protected content on the origin it executes in.
package guard

import (
	"io"
	"sync/atomic"

	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/jrsteele09/go-module-shell/origins"
	"github.com/rs/zerolog/log"
)

// AccessDenied is the fixed fallback rendered for rejected origins.
const AccessDenied = "Access denied"

type Decision int

const (
	// Pending means the environment is not yet interactive and nothing
	// was evaluated.
	Pending Decision = iota
	Allowed
	Denied
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	default:
		return "pending"
	}
}

// AllowlistSource returns the current allowlist.
type AllowlistSource func() (origins.AllowedOrigins, error)

// Reporter receives a diagnostic record for every rejected origin.
type Reporter interface {
	Denied(origin string, allowlist origins.AllowedOrigins, err error)
}

type logReporter struct{}

func (logReporter) Denied(origin string, allowlist origins.AllowedOrigins, err error) {
	log.Warn().Err(err).Str("origin", origin).Int("allowed_count", len(allowlist)).
		Msg("origin guard rejected origin")
}

type Guard struct {
	source      AllowlistSource
	reporter    Reporter
	interactive atomic.Bool
}

type Option func(*Guard)

// WithReporter replaces the default zerolog reporter.
func WithReporter(r Reporter) Option {
	return func(g *Guard) {
		g.reporter = r
	}
}

func New(source AllowlistSource, opts ...Option) *Guard {
	g := &Guard{
		source:   source,
		reporter: logReporter{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MarkInteractive confirms the execution environment is live. Until then
// the guard evaluates nothing.
func (g *Guard) MarkInteractive() {
	g.interactive.Store(true)
}

func (g *Guard) Interactive() bool {
	return g.interactive.Load()
}

// Check decides whether origin may render protected content. The allowlist
// is the source's set plus extra. Any failure to resolve is a denial.
func (g *Guard) Check(origin string, extra ...string) Decision {
	if !g.Interactive() {
		return Pending
	}

	allowlist, err := g.allowlist(extra)
	if err == nil {
		if allowlist.IsAllowedOrigin(origin) {
			return Allowed
		}
		err = apperrors.Wrapf(apperrors.ErrOriginNotAllowed, "[Guard Check] %q", origin)
	}
	g.reporter.Denied(origin, allowlist, err)
	return Denied
}

func (g *Guard) allowlist(extra []string) (allowlist origins.AllowedOrigins, err error) {
	defer func() {
		if r := recover(); r != nil {
			allowlist, err = nil, errPanic{r}
		}
	}()
	if g.source == nil {
		return nil, errNoSource
	}
	base, err := g.source()
	if err != nil {
		return nil, err
	}
	return base.With(extra...), nil
}

// Render writes children when origin is allowed, the AccessDenied fallback
// when it is not, and nothing while pending.
func (g *Guard) Render(w io.Writer, origin string, children func(io.Writer) error, extra ...string) (Decision, error) {
	decision := g.Check(origin, extra...)
	switch decision {
	case Allowed:
		return decision, children(w)
	case Denied:
		_, err := io.WriteString(w, AccessDenied)
		return decision, err
	default:
		return decision, nil
	}
}
