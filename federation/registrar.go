package federation

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-module-shell/internal/clock"
	apperrors "github.com/jrsteele09/go-module-shell/internal/errors"
	"github.com/jrsteele09/go-module-shell/registry"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = 25 * time.Millisecond
	DefaultMaxWait      = 2000 * time.Millisecond
)

type Outcome int

const (
	OutcomeRegistered Outcome = iota
	OutcomeNoCandidates
	OutcomeRuntimeUnavailable
	OutcomeRegistrationFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRegistered:
		return "registered"
	case OutcomeNoCandidates:
		return "no-candidates"
	case OutcomeRuntimeUnavailable:
		return "runtime-unavailable"
	default:
		return "registration-failed"
	}
}

// Registrar registers registry-discovered remotes with the runtime once
// an instance exists.
type Registrar struct {
	runtime      Runtime
	shellName    string
	pollInterval time.Duration
	maxWait      time.Duration
	clock        clock.Clock
}

type RegistrarOption func(*Registrar)

func WithPollInterval(d time.Duration) RegistrarOption {
	return func(r *Registrar) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

func WithMaxWait(d time.Duration) RegistrarOption {
	return func(r *Registrar) {
		if d >= 0 {
			r.maxWait = d
		}
	}
}

func WithClock(c clock.Clock) RegistrarOption {
	return func(r *Registrar) {
		r.clock = c
	}
}

func NewRegistrar(runtime Runtime, shellName string, opts ...RegistrarOption) *Registrar {
	r := &Registrar{
		runtime:      runtime,
		shellName:    shellName,
		pollInterval: DefaultPollInterval,
		maxWait:      DefaultMaxWait,
		clock:        clock.Real(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RemotesFor converts the registry's well-formed entries to runtime remotes.
func RemotesFor(reg registry.RemoteRegistry) []Remote {
	var remotes []Remote
	for _, c := range reg.Candidates() {
		remotes = append(remotes, Remote{Name: c.Name, Entry: c.Entry})
	}
	return remotes
}

// RegisterRuntimeRemotes waits (bounded) for a runtime instance and
// registers reg's remotes with force so they take precedence over
// build-time defaults. Discovery failure is a degraded mode, not an
// error; nothing panics past this call.
func (r *Registrar) RegisterRuntimeRemotes(ctx context.Context, reg registry.RemoteRegistry) (outcome Outcome) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("panic", fmt.Sprint(p)).Msg("runtime remote registration panicked")
			outcome = OutcomeRegistrationFailed
		}
	}()

	remotes := RemotesFor(reg)
	if len(remotes) == 0 {
		return OutcomeNoCandidates
	}

	inst, err := r.waitForInstance(ctx)
	if err != nil {
		log.Warn().Err(err).Dur("max_wait", r.maxWait).Msg("federation runtime not found, keeping build-time remotes")
		return OutcomeRuntimeUnavailable
	}

	if err := inst.RegisterRemotes(remotes, true); err != nil {
		log.Warn().Err(err).Str("instance", inst.Name()).Msg("runtime remote registration failed")
		return OutcomeRegistrationFailed
	}
	log.Info().Str("instance", inst.Name()).Int("remotes", len(remotes)).Msg("runtime remotes registered")
	return OutcomeRegistered
}

func (r *Registrar) waitForInstance(ctx context.Context) (Instance, error) {
	if inst := r.pick(); inst != nil {
		return inst, nil
	}

	ticker := r.clock.NewTicker(r.pollInterval)
	defer ticker.Stop()
	deadline := r.clock.After(r.maxWait)

	for {
		select {
		case <-ctx.Done():
			return nil, apperrors.Wrapf(apperrors.ErrRuntimeUnavailable, "[Registrar waitForInstance] %v", ctx.Err())
		case <-deadline:
			if inst := r.pick(); inst != nil {
				return inst, nil
			}
			return nil, apperrors.ErrRuntimeUnavailable
		case <-ticker.C:
			if inst := r.pick(); inst != nil {
				return inst, nil
			}
		}
	}
}

// pick prefers the instance named after the shell, else the first one.
func (r *Registrar) pick() Instance {
	if r.runtime == nil {
		return nil
	}
	instances := r.runtime.Instances()
	if len(instances) == 0 {
		return nil
	}
	for _, inst := range instances {
		if inst != nil && inst.Name() == r.shellName {
			return inst
		}
	}
	for _, inst := range instances {
		if inst != nil {
			return inst
		}
	}
	return nil
}
