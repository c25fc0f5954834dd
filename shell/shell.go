// Package shell composes discovery, trust and session handling into the
// running composing shell.
package shell

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-module-shell/bootstrap"
	"github.com/jrsteele09/go-module-shell/events"
	"github.com/jrsteele09/go-module-shell/federation"
	"github.com/jrsteele09/go-module-shell/guard"
	"github.com/jrsteele09/go-module-shell/idle"
	"github.com/jrsteele09/go-module-shell/internal/clock"
	"github.com/jrsteele09/go-module-shell/internal/config"
	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/jrsteele09/go-module-shell/origins"
	"github.com/jrsteele09/go-module-shell/registry"
	"github.com/jrsteele09/go-module-shell/session"
	"github.com/rs/zerolog/log"
)

var errNotStarted = errors.New("allowlist not resolved")

// Shell owns the process-wide pieces. Create it with New and call Start
// once.
type Shell struct {
	cfg       config.Config
	fetcher   registry.Fetcher
	defaults  registry.RemoteRegistry
	host      *federation.Host
	container *federation.Container
	registrar *federation.Registrar
	store     *session.Store
	bus       *events.LocalBus
	guard     *guard.Guard
	refresher bootstrap.Refresher
	clock     clock.Clock

	mu           sync.RWMutex
	started      bool
	registry     registry.RemoteRegistry
	dynamic      bool
	allowlist    origins.AllowedOrigins
	registration federation.Outcome
	monitor      *idle.Monitor
	bootstrapper *bootstrap.Bootstrapper
	stops        []func()

	idleWarning atomic.Bool
}

type Option func(*Shell)

// WithFetcher replaces the registry client.
func WithFetcher(f registry.Fetcher) Option {
	return func(s *Shell) { s.fetcher = f }
}

// WithDefaults replaces the remotes loaded from the defaults file.
func WithDefaults(reg registry.RemoteRegistry) Option {
	return func(s *Shell) { s.defaults = reg.Clone() }
}

func WithRefresher(r bootstrap.Refresher) Option {
	return func(s *Shell) { s.refresher = r }
}

func WithStore(store *session.Store) Option {
	return func(s *Shell) { s.store = store }
}

func WithClock(c clock.Clock) Option {
	return func(s *Shell) { s.clock = c }
}

// WithHost replaces the federation runtime the shell attaches its
// container to.
func WithHost(h *federation.Host) Option {
	return func(s *Shell) { s.host = h }
}

func WithGuardReporter(r guard.Reporter) Option {
	return func(s *Shell) {
		s.guard = guard.New(s.Allowlist, guard.WithReporter(r))
	}
}

// New wires the shell from cfg. Nothing touches the network until Start.
func New(cfg config.Config, opts ...Option) (*Shell, error) {
	s := &Shell{
		cfg:   cfg,
		store: session.Default(),
		bus:   events.NewLocalBus(),
		clock: clock.Real(),
		host:  federation.NewHost(),
	}
	s.guard = guard.New(s.Allowlist)

	for _, opt := range opts {
		opt(s)
	}

	if s.fetcher == nil {
		s.fetcher = registry.NewClient(cfg.GetRegistryURL(),
			registry.WithHTTPClient(&http.Client{Timeout: cfg.GetRegistryTimeout()}))
	}
	if s.defaults.Remotes == nil {
		defaults, err := registry.LoadDefaults(cfg.GetDefaultsFile())
		if err != nil {
			log.Warn().Err(err).Msg("no static default remotes")
			defaults = registry.RemoteRegistry{Remotes: map[string]registry.RemoteEntry{}}
		}
		s.defaults = defaults
	}
	if s.refresher == nil {
		refresher, err := bootstrap.NewHTTPRefresher(cfg.GetAPIURL(), cfg.GetRefreshPath(), cfg.GetRefreshTimeout())
		if err != nil {
			return nil, apperrors.Wrapf(err, "[Shell New] refresher")
		}
		if raw := cfg.GetRefreshCookie(); raw != "" {
			cookies, err := http.ParseCookie(raw)
			if err != nil {
				return nil, apperrors.Wrapf(err, "[Shell New] %s", config.RefreshCookieVar)
			}
			if err := refresher.SeedCookies(cookies); err != nil {
				return nil, apperrors.Wrapf(err, "[Shell New] seed refresh cookie")
			}
		}
		s.refresher = refresher
	}

	s.container = federation.NewContainer(cfg.GetShellName(), federation.RemotesFor(s.defaults)...)
	s.registrar = federation.NewRegistrar(s.host, cfg.GetShellName(),
		federation.WithPollInterval(cfg.GetRuntimePollInterval()),
		federation.WithMaxWait(cfg.GetRuntimeMaxWait()),
		federation.WithClock(s.clock),
	)
	return s, nil
}

// Start discovers the registry, resolves the allowlist, registers
// runtime remotes and begins session restoration. Discovery problems
// degrade to the static defaults and never fail Start.
func (s *Shell) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("[Shell Start] already started")
	}
	s.started = true
	s.mu.Unlock()

	env := s.cfg.Lookup()
	reg, dynamic := registry.FetchOrDefault(ctx, s.fetcher, s.defaults)
	reg = registry.ApplyEnvOverrides(reg, env)
	allowlist := origins.Resolve(reg, env)

	s.mu.Lock()
	s.registry = reg
	s.dynamic = dynamic
	s.allowlist = allowlist
	s.mu.Unlock()

	log.Info().
		Bool("dynamic", dynamic).
		Int("remotes", len(reg.Remotes)).
		Str("allowed_origins", allowlist.String()).
		Msg("remote registry loaded")

	s.guard.MarkInteractive()

	s.host.Attach(s.container)
	outcome := s.registrar.RegisterRuntimeRemotes(ctx, reg)

	unbind := BindSession(s.bus, s.store)

	monitor := idle.Start(idle.Options{
		IdleTime:    s.cfg.GetIdleTime(),
		WarningTime: s.cfg.GetIdleWarningTime(),
		OnWarning:   s.onIdleWarning,
		OnTimeout:   s.onIdleTimeout,
		Enabled:     s.store.IsAuthenticated(),
		Clock:       s.clock,
	})
	cancelWatch := s.store.Watch(func(session.Snapshot) {
		authenticated := s.store.IsAuthenticated()
		monitor.SetEnabled(authenticated)
		if !authenticated {
			s.idleWarning.Store(false)
		}
	})

	boot := bootstrap.New(s.store, s.bus, s.refresher)
	stopBoot := boot.Start(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.registration = outcome
	s.monitor = monitor
	s.bootstrapper = boot
	s.stops = append(s.stops, stopBoot, cancelWatch, monitor.Stop, unbind, s.bus.Close)
	s.mu.Unlock()
	return nil
}

// Stop tears down in reverse dependency order. Safe to call twice.
func (s *Shell) Stop() {
	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

// Logout ends the session through the same path for manual logout and
// idle expiry. It fails with ErrNotAuthenticated when there is no
// session to end.
func (s *Shell) Logout(ctx context.Context) error {
	if !s.store.IsAuthenticated() {
		s.idleWarning.Store(false)
		return apperrors.Wrapf(apperrors.ErrNotAuthenticated, "[Shell Logout]")
	}

	payload := events.AuthEventPayload{}
	if u := s.store.User(); u != nil {
		payload.UserID = u.ID
	}
	events.PublishAuth(ctx, s.bus, events.UserLoggedOut, payload)
	if s.store.IsAuthenticated() {
		s.store.ClearAuth()
	}
	s.idleWarning.Store(false)
	log.Info().Str("user_id", payload.UserID).Msg("user logged out")
	return nil
}

// Activity forwards a user interaction to the idle monitor.
func (s *Shell) Activity(kind string) bool {
	m := s.Monitor()
	if m == nil || !m.Activity(kind) {
		return false
	}
	s.idleWarning.Store(false)
	return true
}

func (s *Shell) onIdleWarning() {
	s.idleWarning.Store(true)
	log.Info().Msg("session idle, warning user")
}

func (s *Shell) onIdleTimeout() {
	log.Info().Msg("session idle timeout")
	if err := s.Logout(context.Background()); err != nil {
		log.Debug().Err(err).Msg("idle timeout without a session")
	}
}

// RedirectTarget validates a post-login redirect against the allowlist.
// Before Start only relative paths pass.
func (s *Shell) RedirectTarget(raw string) (string, error) {
	target, ok := origins.SafeRedirectTarget(raw, s.AllowedOrigins())
	if !ok {
		return "", apperrors.Wrapf(apperrors.ErrInvalidRedirect, "[Shell RedirectTarget] %q", raw)
	}
	return target, nil
}

// Allowlist returns the resolved allowlist; it fails before Start so the
// guard denies.
func (s *Shell) Allowlist() (origins.AllowedOrigins, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.allowlist == nil {
		return nil, errNotStarted
	}
	return s.allowlist, nil
}

func (s *Shell) AllowedOrigins() origins.AllowedOrigins {
	a, _ := s.Allowlist()
	return a
}

// Registry returns a copy of the effective registry.
func (s *Shell) Registry() registry.RemoteRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Clone()
}

// Remote looks up a remote by slug in the effective registry.
func (s *Shell) Remote(slug string) (registry.RemoteEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.registry.Remotes[slug]
	return e, ok
}

// Dynamic reports whether the registry came from the network rather than
// the static defaults.
func (s *Shell) Dynamic() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dynamic
}

func (s *Shell) RegistrationOutcome() federation.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registration
}

func (s *Shell) Monitor() *idle.Monitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitor
}

func (s *Shell) Bootstrapper() *bootstrap.Bootstrapper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bootstrapper
}

func (s *Shell) IdleWarning() bool {
	return s.idleWarning.Load()
}

func (s *Shell) Config() config.Config {
	return s.cfg
}

func (s *Shell) Store() *session.Store {
	return s.store
}

func (s *Shell) Bus() events.Bus {
	return s.bus
}

func (s *Shell) Guard() *guard.Guard {
	return s.guard
}

// Container is the shell's own federation runtime instance.
func (s *Shell) Container() *federation.Container {
	return s.container
}
