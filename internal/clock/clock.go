// Package clock provides the agent's cached monotonic-epoch clock. The agent
// reads "now" many times per duty cycle but must only pay the cost of an
// actual clock read once per cycle (spec.md §4.1 step 1).
package clock

import "time"

// Source is the underlying time source. The default EpochNanos implementation
// wraps time.Now(); tests substitute a Manual clock to drive deterministic
// scenarios (spec.md §8 seed tests advance the clock in fixed-size steps).
type Source interface {
	NowNs() int64
}

// EpochNanos is the production Source: wall-clock nanoseconds since the Unix
// epoch, read via time.Now(). It performs no allocation.
type EpochNanos struct{}

func (EpochNanos) NowNs() int64 {
	return time.Now().UnixNano()
}

// Manual is a deterministic Source for tests: NowNs returns whatever value
// was last set with Set or Advance.
type Manual struct {
	now int64
}

// NewManual creates a Manual clock starting at startNs.
func NewManual(startNs int64) *Manual {
	return &Manual{now: startNs}
}

func (m *Manual) NowNs() int64 { return m.now }

// Set pins the clock to a specific value.
func (m *Manual) Set(nowNs int64) { m.now = nowNs }

// Advance moves the clock forward by deltaNs (deltaNs may be zero to model a
// duty cycle where the cached clock does not advance, which spec.md §8
// scenario 2 exercises deliberately).
func (m *Manual) Advance(deltaNs int64) { m.now += deltaNs }

// Cache is the per-agent cached clock. Refresh must be called exactly once
// per duty cycle (step 1 of do_work); NowNs is cheap and side-effect free so
// it can be called as many times as needed within the cycle.
type Cache struct {
	source Source
	nowNs  int64
}

// NewCache creates a Cache over the given Source. The cache starts
// unrefreshed; callers must call Refresh before the first NowNs read.
func NewCache(source Source) *Cache {
	if source == nil {
		source = EpochNanos{}
	}
	return &Cache{source: source}
}

// Refresh re-reads the underlying source. Monotonic non-decreasing between
// duty cycles is a contract on the Source, not enforced here — a Manual
// clock used incorrectly by a test is the test's bug, not the cache's.
func (c *Cache) Refresh() {
	c.nowNs = c.source.NowNs()
}

// NowNs returns the value captured at the most recent Refresh.
func (c *Cache) NowNs() int64 {
	return c.nowNs
}
