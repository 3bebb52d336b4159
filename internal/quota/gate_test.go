package quota

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

// newTestGate builds a gate with a fixed limit and a controllable clock.
func newTestGate(t *testing.T, limit int) (*Gate, *time.Time) {
	t.Helper()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	settings := &conf.QuotaSettings{Enabled: true, DailyLimit: limit}
	g := NewGate(NewMemoryStore(), settings, WithClock(func() time.Time { return *clock }))
	return g, clock
}

// TestGateAllowUntilLimit verifies that exactly limit checks succeed within
// one window and the next one is denied with usage details attached.
func TestGateAllowUntilLimit(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Allow("device-1", 1), "check %d should be allowed", i+1)
	}

	err := g.Allow("device-1", 1)
	require.Error(t, err, "check beyond limit must be denied")
	assert.True(t, errors.IsQuotaExceeded(err), "denial should be a quota error")

	used, limit, ok := errors.QuotaDetails(err)
	require.True(t, ok, "quota error should carry usage details")
	assert.Equal(t, 3, used)
	assert.Equal(t, 3, limit)

	// The denied check must not have mutated the counter.
	assert.Equal(t, 3, g.Status("device-1").Used)
}

// TestGateWindowReset verifies the counter restarts at 1 after the reset
// time passes.
func TestGateWindowReset(t *testing.T) {
	t.Parallel()

	g, clock := newTestGate(t, 2)

	require.NoError(t, g.Allow("device-1", 1))
	require.NoError(t, g.Allow("device-1", 1))
	require.Error(t, g.Allow("device-1", 1), "limit reached")

	// Step past the window boundary.
	*clock = clock.Add(conf.QuotaWindow + time.Minute)

	require.NoError(t, g.Allow("device-1", 1), "check after reset should be allowed")
	assert.Equal(t, 1, g.Status("device-1").Used, "counter should restart at 1")
}

// TestGateStatusDoesNotMutate verifies that Status never creates or
// advances a counter.
func TestGateStatusDoesNotMutate(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, 5)

	s := g.Status("unseen-device")
	assert.Equal(t, 0, s.Used)
	assert.Equal(t, 5, s.Limit)
	assert.Equal(t, 5, s.Remaining())

	// Repeated status calls still see no usage.
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, g.Status("unseen-device").Used)
	}

	require.NoError(t, g.Allow("unseen-device", 1))
	assert.Equal(t, 1, g.Status("unseen-device").Used)
	assert.Equal(t, 1, g.Status("unseen-device").Used, "status must not increment")
}

// TestGateCheckCapacity verifies the batch pre-check denies a batch that
// cannot fully fit without consuming any units.
func TestGateCheckCapacity(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, 5)

	require.NoError(t, g.Allow("device-1", 1))
	require.NoError(t, g.Allow("device-1", 1))

	// 3 units remain: a batch of 5 must be denied outright.
	err := g.CheckCapacity("device-1", 5)
	require.Error(t, err)
	assert.True(t, errors.IsQuotaExceeded(err))
	assert.Equal(t, 2, g.Status("device-1").Used, "pre-check must not consume units")

	// A batch of 3 fits.
	require.NoError(t, g.CheckCapacity("device-1", 3))
}

// TestGateDevicesAreIndependent verifies quota isolation between devices.
func TestGateDevicesAreIndependent(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, 1)

	require.NoError(t, g.Allow("device-a", 1))
	require.Error(t, g.Allow("device-a", 1))
	require.NoError(t, g.Allow("device-b", 1), "other devices keep their own counters")
}

// TestGateConcurrentChecks verifies that concurrent checks never allow more
// than the limit in total.
func TestGateConcurrentChecks(t *testing.T) {
	t.Parallel()

	const limit = 50
	g, _ := newTestGate(t, limit)

	var wg sync.WaitGroup
	allowed := make(chan struct{}, limit*2)
	for i := 0; i < limit*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Allow("device-1", 1) == nil {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	assert.Len(t, allowed, limit, "exactly limit checks should be allowed")
}

// TestMemoryStore verifies basic store operations across shards.
func TestMemoryStore(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()

	_, ok := s.Get("device-1")
	assert.False(t, ok, "unknown device has no counter")

	reset := time.Now().Add(time.Hour)
	s.Put("device-1", Counter{Count: 2, ResetAt: reset})

	c, ok := s.Get("device-1")
	require.True(t, ok)
	assert.Equal(t, 2, c.Count)
	assert.Equal(t, reset, c.ResetAt)

	s.Delete("device-1")
	_, ok = s.Get("device-1")
	assert.False(t, ok, "deleted counter should be gone")
}

// TestGateFreshWindowEnforcesLimit verifies the very first check of a window
// is denied when the request alone exceeds the daily limit, including the
// degenerate zero-limit configuration.
func TestGateFreshWindowEnforcesLimit(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, 0)

	err := g.Allow("device-zero", 1)
	require.Error(t, err, "a zero limit must deny even the first check")
	assert.True(t, errors.IsQuotaExceeded(err))

	used, limit, ok := errors.QuotaDetails(err)
	require.True(t, ok)
	assert.Equal(t, 0, used, "nothing was consumed before the denial")
	assert.Equal(t, 0, limit)

	// The denial must not have opened a usage window.
	assert.Zero(t, g.Status("device-zero").Used)

	// An oversized batch on a fresh window is denied the same way.
	g2, _ := newTestGate(t, 5)
	err = g2.Allow("device-batch", 6)
	assert.True(t, errors.IsQuotaExceeded(err))
	assert.Zero(t, g2.Status("device-batch").Used)

	require.NoError(t, g2.Allow("device-batch", 5), "a fitting batch still opens the window")
}
