// Package quota implements the per-device daily usage gate that protects
// the upstream vision model from abuse. Each device identifier gets a fixed
// 24-hour window counter; the gate allows a call and increments the counter
// in one step, and resets the window lazily when it has expired.
package quota

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
)

// Package-level logger for the quota gate, backed by a rotating file with a
// discard fallback until logging is configured.
var (
	quotaLogger   *slog.Logger
	quotaLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	quotaLevelVar.Set(slog.LevelInfo)

	quotaLogger, _, err = logging.NewFileLogger("logs/quota.log", "quota", quotaLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: quotaLevelVar})
		quotaLogger = slog.New(fbHandler).With("service", "quota")
	}
}

// Status is a read-only snapshot of a device's quota usage, used by the
// quota preview endpoint and by batch capacity pre-checks.
type Status struct {
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"resetAt"`
}

// Remaining returns how many quota units the device has left in the window.
func (s Status) Remaining() int {
	r := s.Limit - s.Used
	if r < 0 {
		return 0
	}
	return r
}

// Gate enforces the per-device daily limit. Counter mutation is a
// check-then-act sequence over the injected Store, serialized under a
// single mutex; contention is low because the gate sits in front of a slow
// vision model call.
type Gate struct {
	store   Store
	limit   int
	window  time.Duration
	debug   bool
	metrics *metrics.QuotaMetrics

	mu  sync.Mutex
	now func() time.Time // injectable clock for tests
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the gate's time source. Used in tests to step through
// window expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithMetrics attaches quota metrics to the gate.
func WithMetrics(m *metrics.QuotaMetrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// NewGate creates a quota gate over the given store. A nil store gets the
// in-memory default.
func NewGate(store Store, settings *conf.QuotaSettings, opts ...Option) *Gate {
	if store == nil {
		store = NewMemoryStore()
	}
	g := &Gate{
		store:  store,
		limit:  settings.DailyLimit,
		window: conf.QuotaWindow,
		debug:  settings.Debug,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Limit returns the configured daily limit.
func (g *Gate) Limit() int {
	return g.limit
}

// Allow consumes n quota units for the device, creating or resetting the
// window counter as needed. It returns a QuotaExceeded error, without
// mutating the counter, when the device does not have n units left.
func (g *Gate) Allow(deviceID string, n int) error {
	if n < 1 {
		n = 1
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	c, ok := g.store.Get(deviceID)

	switch {
	case !ok, now.After(c.ResetAt):
		// First use or expired window: open a fresh window, still subject
		// to the limit.
		if n > g.limit {
			if g.metrics != nil {
				g.metrics.RecordCheck(deviceID, "denied")
			}
			quotaLogger.Warn("quota exceeded",
				"device", deviceID,
				"used", 0,
				"limit", g.limit,
				"requested", n)
			return errors.QuotaExceededError(0, g.limit)
		}
		c = Counter{Count: n, ResetAt: now.Add(g.window)}
	case c.Count+n > g.limit:
		if g.metrics != nil {
			g.metrics.RecordCheck(deviceID, "denied")
		}
		quotaLogger.Warn("quota exceeded",
			"device", deviceID,
			"used", c.Count,
			"limit", g.limit,
			"requested", n,
			"reset_at", c.ResetAt)
		return errors.QuotaExceededError(c.Count, g.limit)
	default:
		c.Count += n
	}

	g.store.Put(deviceID, c)

	if g.metrics != nil {
		g.metrics.RecordCheck(deviceID, "allowed")
		g.metrics.SetUsage(deviceID, c.Count)
	}
	if g.debug {
		quotaLogger.Debug("quota check allowed",
			"device", deviceID,
			"used", c.Count,
			"limit", g.limit,
			"reset_at", c.ResetAt)
	}
	return nil
}

// CheckCapacity verifies that the device has at least n units left without
// consuming anything. Batch submissions call this up front so a batch that
// cannot fully fit is denied before any image is processed.
func (g *Gate) CheckCapacity(deviceID string, n int) error {
	s := g.Status(deviceID)
	if s.Used+n > s.Limit {
		if g.metrics != nil {
			g.metrics.RecordCheck(deviceID, "denied")
		}
		return errors.QuotaExceededError(s.Used, s.Limit)
	}
	return nil
}

// Status reports usage for a device without creating or mutating its
// counter. An unknown device, or one whose window has expired, reports zero
// usage and the reset time its next request would receive.
func (g *Gate) Status(deviceID string) Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	c, ok := g.store.Get(deviceID)
	if !ok || now.After(c.ResetAt) {
		return Status{Used: 0, Limit: g.limit, ResetAt: now.Add(g.window)}
	}
	return Status{Used: c.Count, Limit: g.limit, ResetAt: c.ResetAt}
}

// Reset clears the counter for a device. Intended for operator tooling.
func (g *Gate) Reset(deviceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.store.Delete(deviceID)
}
