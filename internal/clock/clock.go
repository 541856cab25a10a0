// Package clock provides a mockable time source for testing.
// In production, it simply wraps the time package. For tests, use MockClock,
// whose tickers and timers only fire when the test advances time.
package clock

import (
	"sync"
	"time"
)

// Clock is the interface for time operations.
// Use package-level functions for convenience, or inject a Clock for testing.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Until(t time.Time) time.Duration

	// NewTicker returns a ticker firing every d.
	NewTicker(d time.Duration) Ticker
	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Ticker is the subset of *time.Ticker the rest of the code needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
	Reset(d time.Duration)
}

// --- Real Clock (simple wrapper) ---

// RealClock provides the actual system time.
type RealClock struct{}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Until returns the duration until t.
func (c *RealClock) Until(t time.Time) time.Duration {
	return time.Until(t)
}

// NewTicker wraps time.NewTicker.
func (c *RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

// After wraps time.After.
func (c *RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time   { return r.t.C }
func (r *realTicker) Stop()                 { r.t.Stop() }
func (r *realTicker) Reset(d time.Duration) { r.t.Reset(d) }

// --- Mock Clock (for testing) ---

// MockClock is a test clock with controllable time.
type MockClock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current time.Time
	waiters []*mockWaiter
}

type mockWaiter struct {
	ch     chan time.Time
	at     time.Time
	period time.Duration // zero for one-shot timers
}

// NewMockClock creates a mock clock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	c := &MockClock{current: t}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Now returns the mock time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Until returns the duration until t.
func (c *MockClock) Until(t time.Time) time.Duration {
	return t.Sub(c.Now())
}

// Set sets the mock time without firing anything.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the mock time forward by d and fires every ticker and timer
// that came due. Like time.Ticker, a ticker whose channel is full drops ticks.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)

	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		done := false
		for !w.at.After(c.current) {
			select {
			case w.ch <- w.at:
			default:
			}
			if w.period <= 0 {
				done = true
				break
			}
			w.at = w.at.Add(w.period)
		}
		if !done {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.cond.Broadcast()
}

// NewTicker creates a ticker driven by Advance.
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &mockWaiter{
		ch:     make(chan time.Time, 1),
		at:     c.current.Add(d),
		period: d,
	}
	c.addLocked(w)
	return &mockTicker{clock: c, w: w}
}

// After creates a one-shot timer driven by Advance.
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &mockWaiter{
		ch: make(chan time.Time, 1),
		at: c.current.Add(d),
	}
	if d <= 0 {
		w.ch <- c.current
		return w.ch
	}
	c.addLocked(w)
	return w.ch
}

// BlockUntil waits until at least n tickers or timers are pending.
// Tests use it to know a goroutine has armed its timer before advancing time.
func (c *MockClock) BlockUntil(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.cond.Wait()
	}
}

// Pending returns the number of armed tickers and timers.
func (c *MockClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *MockClock) addLocked(w *mockWaiter) {
	c.waiters = append(c.waiters, w)
	c.cond.Broadcast()
}

func (c *MockClock) removeLocked(w *mockWaiter) {
	for i, cur := range c.waiters {
		if cur == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	c.cond.Broadcast()
}

type mockTicker struct {
	clock *MockClock
	w     *mockWaiter
}

func (t *mockTicker) C() <-chan time.Time { return t.w.ch }

func (t *mockTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.clock.removeLocked(t.w)
	t.drain()
}

func (t *mockTicker) Reset(d time.Duration) {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.clock.removeLocked(t.w)
	t.drain()
	t.w.period = d
	t.w.at = t.clock.current.Add(d)
	t.clock.addLocked(t.w)
}

// drain discards a tick delivered before Stop or Reset, matching the
// synchronous timer channels of time.Ticker since Go 1.23.
func (t *mockTicker) drain() {
	select {
	case <-t.w.ch:
	default:
	}
}

// --- Package-level convenience functions ---

// Now returns the current system time.
func Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func Since(t time.Time) time.Duration {
	return time.Since(t)
}
