// Package ratelimit implements the per-platform admission controller
// described in §4.5. It is grounded on the teacher's
// internal/strava/ratelimit.go RateLimiter, restructured from a blocking
// Wait(ctx) into the spec's non-blocking reserve/deny contract: the
// executor must not busy-wait, so a full window returns denied with a
// retry_after instead of sleeping.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Caps bundles a window's hard API cap and the configured safety margin
// the governor actually enforces (§4.5's "daily cap 200 but configured to
// 180" example).
type Caps struct {
	WindowLimit  int           // raw 15-minute cap reported by the platform
	WindowMargin int           // configured ceiling, <= WindowLimit
	DailyLimit   int           // raw 24-hour cap reported by the platform
	DailyMargin  int           // configured ceiling, <= DailyLimit
	Window       time.Duration // rolling window duration, default 15m
}

// StravaDefaults mirrors the teacher's hardcoded Strava limits, now
// expressed as margin-aware caps per §4.5's example.
func StravaDefaults() Caps {
	return Caps{
		WindowLimit:  100,
		WindowMargin: 90,
		DailyLimit:   1000,
		DailyMargin:  180,
		Window:       15 * time.Minute,
	}
}

type counters struct {
	caps Caps

	windowUsage   int
	windowResetAt time.Time

	dailyUsage   int
	dailyResetAt time.Time
}

func newCounters(caps Caps, now time.Time) *counters {
	return &counters{
		caps:          caps,
		windowResetAt: now.Add(caps.Window),
		dailyResetAt:  now.Truncate(24 * time.Hour).Add(24 * time.Hour),
	}
}

// decay expires any window whose reset time has passed. Lazy: called from
// inside Reserve, no background timer required (§4.5).
func (c *counters) decay(now time.Time) {
	if now.After(c.windowResetAt) {
		c.windowUsage = 0
		c.windowResetAt = now.Add(c.caps.Window)
	}
	if now.After(c.dailyResetAt) {
		c.dailyUsage = 0
		c.dailyResetAt = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
}

// Governor is the multi-platform admission controller. One instance can
// serve several platforms; each platform name gets its own rolling
// windows.
type Governor struct {
	mu       sync.Mutex
	byPlatform map[string]*counters
	defaults   Caps
}

// New creates a Governor. defaultCaps seeds any platform first seen without
// an explicit SetCaps call.
func New(defaultCaps Caps) *Governor {
	return &Governor{
		byPlatform: make(map[string]*counters),
		defaults:   defaultCaps,
	}
}

// SetCaps configures (or reconfigures) the caps for a platform. Existing
// usage counts are preserved; only the caps change.
func (g *Governor) SetCaps(platform string, caps Caps) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.counterFor(platform)
	c.caps = caps
}

func (g *Governor) counterFor(platform string) *counters {
	c, ok := g.byPlatform[platform]
	if !ok {
		c = newCounters(g.defaults, time.Now())
		g.byPlatform[platform] = c
	}
	return c
}

// Decision is the outcome of a Reserve call.
type Decision struct {
	Granted    bool
	RetryAfter time.Duration // valid only when Granted is false
}

// Reserve implements governor.reserve(platform, cost) from §4.5: if
// neither window is within margin of its cap, usage is incremented and
// Granted is true. Otherwise Granted is false and RetryAfter is the time
// until the blocking window resets. Reserve never blocks.
func (g *Governor) Reserve(platform string, cost int) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	c := g.counterFor(platform)
	c.decay(now)

	if c.windowUsage+cost > c.caps.WindowMargin {
		return Decision{Granted: false, RetryAfter: c.windowResetAt.Sub(now)}
	}
	if c.dailyUsage+cost > c.caps.DailyMargin {
		return Decision{Granted: false, RetryAfter: c.dailyResetAt.Sub(now)}
	}

	c.windowUsage += cost
	c.dailyUsage += cost
	return Decision{Granted: true}
}

// UpdateFromHeaders reconciles local counters with a platform's own
// authoritative usage headers, the way Strava's X-RateLimit-Usage /
// X-RateLimit-Limit headers do (teacher's UpdateFromHeaders). Comma-
// separated "window,daily" pairs, matching Strava's wire format; other
// platforms that don't send these headers simply never call this.
func (g *Governor) UpdateFromHeaders(platform string, h http.Header) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.counterFor(platform)

	if usage := h.Get("X-RateLimit-Usage"); usage != "" {
		parts := strings.Split(usage, ",")
		if len(parts) >= 2 {
			if w, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
				c.windowUsage = w
			}
			if d, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				c.dailyUsage = d
			}
		}
	}
	if limit := h.Get("X-RateLimit-Limit"); limit != "" {
		parts := strings.Split(limit, ",")
		if len(parts) >= 2 {
			if w, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
				c.caps.WindowLimit = w
			}
			if d, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				c.caps.DailyLimit = d
			}
		}
	}
}

// Status reports remaining headroom under the configured margins.
type Status struct {
	WindowUsage, WindowMargin int
	DailyUsage, DailyMargin   int
	WindowResetAt, DailyResetAt time.Time
}

func (g *Governor) Status(platform string) Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.counterFor(platform)
	c.decay(time.Now())
	return Status{
		WindowUsage:   c.windowUsage,
		WindowMargin:  c.caps.WindowMargin,
		DailyUsage:    c.dailyUsage,
		DailyMargin:   c.caps.DailyMargin,
		WindowResetAt: c.windowResetAt,
		DailyResetAt:  c.dailyResetAt,
	}
}
