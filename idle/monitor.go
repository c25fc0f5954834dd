// Package idle tracks user inactivity and drives the warning and
// auto-logout transitions.
package idle

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-module-shell/internal/clock"
	"github.com/rs/zerolog/log"
)

const (
	DefaultIdleTime    = 30 * time.Minute
	DefaultWarningTime = 5 * time.Minute
)

// ActivityKinds are the user interactions that count as activity.
var ActivityKinds = map[string]struct{}{
	"mousedown":  {},
	"mousemove":  {},
	"keydown":    {},
	"scroll":     {},
	"touchstart": {},
	"click":      {},
}

type State int

const (
	StateActive State = iota
	StateWarning
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	default:
		return "expired"
	}
}

type Options struct {
	IdleTime    time.Duration
	WarningTime time.Duration // Warning fires at IdleTime-WarningTime; <= 0 disables it
	OnWarning   func()
	OnTimeout   func()
	Enabled     bool
	Clock       clock.Clock
}

// Monitor is the idle state machine. Callbacks run without the monitor's
// lock held, so they may call back into it.
type Monitor struct {
	mu           sync.Mutex
	opts         Options
	clock        clock.Clock
	enabled      bool
	stopped      bool
	state        State
	generation   uint64
	lastActivity time.Time
	timers       []*clock.Timer
}

// Start creates a monitor and, when enabled, arms its timers.
func Start(opts Options) *Monitor {
	if opts.IdleTime <= 0 {
		opts.IdleTime = DefaultIdleTime
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	m := &Monitor{
		opts:    opts,
		clock:   opts.Clock,
		enabled: opts.Enabled,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return m
}

// ResetTimer starts a new idle episode.
func (m *Monitor) ResetTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Activity records a tracked user interaction. Unknown kinds are ignored.
func (m *Monitor) Activity(kind string) bool {
	if _, ok := ActivityKinds[kind]; !ok {
		return false
	}
	m.ResetTimer()
	return true
}

// SetEnabled arms or clears the timers.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled == enabled {
		return
	}
	m.enabled = enabled
	m.resetLocked()
}

// Stop clears all scheduled callbacks. The monitor cannot be restarted.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.generation++
	m.clearTimersLocked()
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled && !m.stopped
}

// ExpiresAt is when the current episode times out; zero when disabled.
func (m *Monitor) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || m.stopped {
		return time.Time{}
	}
	return m.lastActivity.Add(m.opts.IdleTime)
}

func (m *Monitor) resetLocked() {
	m.generation++
	m.clearTimersLocked()
	m.state = StateActive
	m.lastActivity = m.clock.Now()

	if !m.enabled || m.stopped {
		return
	}

	gen := m.generation
	if warnAfter := m.opts.IdleTime - m.opts.WarningTime; m.opts.WarningTime > 0 && warnAfter > 0 {
		m.timers = append(m.timers, m.clock.AfterFunc(warnAfter, func() { m.fire(gen, StateWarning) }))
	}
	m.timers = append(m.timers, m.clock.AfterFunc(m.opts.IdleTime, func() { m.fire(gen, StateExpired) }))
}

func (m *Monitor) clearTimersLocked() {
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
}

// fire moves to next unless the episode that scheduled it is over.
func (m *Monitor) fire(gen uint64, next State) {
	m.mu.Lock()
	if gen != m.generation || !m.enabled || m.stopped || m.state >= next {
		m.mu.Unlock()
		return
	}
	m.state = next
	callback := m.opts.OnWarning
	if next == StateExpired {
		callback = m.opts.OnTimeout
		m.clearTimersLocked()
	}
	m.mu.Unlock()

	log.Debug().Str("state", next.String()).Msg("idle state changed")
	if callback != nil {
		callback()
	}
}
