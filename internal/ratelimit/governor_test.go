package ratelimit

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserve_GrantsUpToMargin(t *testing.T) {
	g := New(Caps{WindowLimit: 100, WindowMargin: 3, DailyLimit: 1000, DailyMargin: 900, Window: time.Minute})

	for i := 0; i < 3; i++ {
		d := g.Reserve("strava", 1)
		require.True(t, d.Granted, "reservation %d should be granted", i)
	}

	d := g.Reserve("strava", 1)
	assert.False(t, d.Granted)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestReserve_DoesNotBlock(t *testing.T) {
	g := New(Caps{WindowLimit: 1, WindowMargin: 1, DailyLimit: 1, DailyMargin: 1, Window: time.Hour})
	require.True(t, g.Reserve("garmin", 1).Granted)

	start := time.Now()
	d := g.Reserve("garmin", 1)
	elapsed := time.Since(start)

	assert.False(t, d.Granted)
	assert.Less(t, elapsed, 50*time.Millisecond, "Reserve must never block")
}

func TestReserve_PerPlatformIndependent(t *testing.T) {
	g := New(Caps{WindowLimit: 1, WindowMargin: 1, DailyLimit: 10, DailyMargin: 10, Window: time.Hour})
	require.True(t, g.Reserve("strava", 1).Granted)

	// A different platform has its own budget.
	assert.True(t, g.Reserve("garmin", 1).Granted)
}

func TestUpdateFromHeaders(t *testing.T) {
	g := New(StravaDefaults())
	h := http.Header{}
	h.Set("X-RateLimit-Usage", "34,512")
	h.Set("X-RateLimit-Limit", "100,1000")
	g.UpdateFromHeaders("strava", h)

	status := g.Status("strava")
	assert.Equal(t, 34, status.WindowUsage)
	assert.Equal(t, 512, status.DailyUsage)
}

func TestLazyDecay(t *testing.T) {
	g := New(Caps{WindowLimit: 1, WindowMargin: 1, DailyLimit: 10, DailyMargin: 10, Window: time.Millisecond})
	require.True(t, g.Reserve("strava", 1).Granted)
	require.False(t, g.Reserve("strava", 1).Granted)

	time.Sleep(5 * time.Millisecond)
	assert.True(t, g.Reserve("strava", 1).Granted, "window should have decayed")
}
