package idle_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-module-shell/idle"
	"github.com/jrsteele09/go-module-shell/internal/clock"
	"github.com/stretchr/testify/require"
)

type counters struct {
	warnings int
	timeouts int
}

func startMonitor(t *testing.T, enabled bool) (*idle.Monitor, *clock.FakeClock, *counters) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	c := &counters{}
	m := idle.Start(idle.Options{
		IdleTime:    30 * time.Minute,
		WarningTime: 5 * time.Minute,
		OnWarning:   func() { c.warnings++ },
		OnTimeout:   func() { c.timeouts++ },
		Enabled:     enabled,
		Clock:       fake,
	})
	t.Cleanup(m.Stop)
	return m, fake, c
}

func TestMonitor_WarningThenTimeout(t *testing.T) {
	m, fake, c := startMonitor(t, true)

	fake.Advance(24*time.Minute + 59*time.Second)
	require.Zero(t, c.warnings)
	require.Equal(t, idle.StateActive, m.State())

	fake.Advance(time.Second)
	require.Equal(t, 1, c.warnings)
	require.Zero(t, c.timeouts)
	require.Equal(t, idle.StateWarning, m.State())

	fake.Advance(5 * time.Minute)
	require.Equal(t, 1, c.warnings)
	require.Equal(t, 1, c.timeouts)
	require.Equal(t, idle.StateExpired, m.State())

	fake.Advance(2 * time.Hour)
	require.Equal(t, 1, c.warnings)
	require.Equal(t, 1, c.timeouts, "timeout must not recur until reset")
}

func TestMonitor_ResetSuppressesTimeout(t *testing.T) {
	m, fake, c := startMonitor(t, true)

	fake.Advance(26 * time.Minute)
	require.Equal(t, 1, c.warnings)

	m.ResetTimer()
	require.Equal(t, idle.StateActive, m.State())

	fake.Advance(4 * time.Minute)
	require.Zero(t, c.timeouts)

	fake.Advance(21 * time.Minute)
	require.Equal(t, 2, c.warnings, "a new episode warns again")
	require.Zero(t, c.timeouts)

	fake.Advance(5 * time.Minute)
	require.Equal(t, 1, c.timeouts)

	t.Run("reset after expiry starts over", func(t *testing.T) {
		m.ResetTimer()
		require.Equal(t, idle.StateActive, m.State())
		fake.Advance(30 * time.Minute)
		require.Equal(t, 2, c.timeouts)
	})
}

func TestMonitor_Activity(t *testing.T) {
	m, fake, c := startMonitor(t, true)

	fake.Advance(20 * time.Minute)
	require.True(t, m.Activity("keydown"))
	require.False(t, m.Activity("resize"))

	fake.Advance(20 * time.Minute)
	require.Zero(t, c.warnings)
	require.Zero(t, c.timeouts)
}

func TestMonitor_DisabledSchedulesNothing(t *testing.T) {
	m, fake, c := startMonitor(t, false)
	require.Zero(t, fake.PendingCount())
	require.True(t, m.ExpiresAt().IsZero())

	fake.Advance(time.Hour)
	require.Zero(t, c.warnings)
	require.Zero(t, c.timeouts)

	m.SetEnabled(true)
	require.Equal(t, 2, fake.PendingCount())
	fake.Advance(30 * time.Minute)
	require.Equal(t, 1, c.timeouts)
}

func TestMonitor_DisableClearsTimers(t *testing.T) {
	m, fake, c := startMonitor(t, true)
	require.Equal(t, 2, fake.PendingCount())

	m.SetEnabled(false)
	require.Zero(t, fake.PendingCount())
	require.False(t, m.Enabled())

	fake.Advance(time.Hour)
	require.Zero(t, c.warnings)
	require.Zero(t, c.timeouts)
}

func TestMonitor_Stop(t *testing.T) {
	m, fake, c := startMonitor(t, true)
	m.Stop()
	require.Zero(t, fake.PendingCount())

	m.ResetTimer()
	m.SetEnabled(true)
	require.Zero(t, fake.PendingCount())

	fake.Advance(time.Hour)
	require.Zero(t, c.timeouts)
}

func TestMonitor_CallbackMayReenter(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	var m *idle.Monitor
	timeouts := 0
	m = idle.Start(idle.Options{
		IdleTime: time.Minute,
		OnTimeout: func() {
			timeouts++
			m.SetEnabled(false)
		},
		Enabled: true,
		Clock:   fake,
	})

	fake.Advance(time.Minute)
	require.Equal(t, 1, timeouts)
	require.False(t, m.Enabled())
	require.Zero(t, fake.PendingCount())
}

func TestMonitor_ExpiresAt(t *testing.T) {
	m, fake, _ := startMonitor(t, true)
	start := fake.Now()
	require.Equal(t, start.Add(30*time.Minute), m.ExpiresAt())

	fake.Advance(10 * time.Minute)
	m.ResetTimer()
	require.Equal(t, start.Add(40*time.Minute), m.ExpiresAt())
}
