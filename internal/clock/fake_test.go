package clock_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-module-shell/internal/clock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AfterFunc(t *testing.T) {
	t.Run("fires once deadline passes", func(t *testing.T) {
		c := clock.Fake(epoch)
		fired := 0
		c.AfterFunc(time.Minute, func() { fired++ })

		c.Advance(59 * time.Second)
		require.Equal(t, 0, fired)

		c.Advance(time.Second)
		require.Equal(t, 1, fired)

		c.Advance(time.Hour)
		require.Equal(t, 1, fired)
	})

	t.Run("stopped timer never fires", func(t *testing.T) {
		c := clock.Fake(epoch)
		fired := false
		timer := c.AfterFunc(time.Second, func() { fired = true })

		require.True(t, timer.Stop())
		require.False(t, timer.Stop())
		c.Advance(time.Minute)
		require.False(t, fired)
		require.Equal(t, 0, c.PendingCount())
	})

	t.Run("fires in deadline order", func(t *testing.T) {
		c := clock.Fake(epoch)
		var order []string
		c.AfterFunc(2*time.Second, func() { order = append(order, "second") })
		c.AfterFunc(time.Second, func() { order = append(order, "first") })

		c.Advance(5 * time.Second)
		require.Equal(t, []string{"first", "second"}, order)
	})
}

func TestFakeClock_Ticker(t *testing.T) {
	c := clock.Fake(epoch)
	ticker := c.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	c.Advance(10 * time.Millisecond)
	select {
	case <-ticker.C:
	default:
		t.Fatal("expected a tick")
	}
	require.Equal(t, epoch.Add(10*time.Millisecond), c.Now())
}
