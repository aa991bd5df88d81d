package clock

import (
	"sync"
	"time"
)

// FakeClock is a deterministic clock for tests. Time stands still until
// Advance is called, at which point every timer and ticker due within
// the advanced window fires in chronological order.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

// fakeWaiter is a pending timer or ticker deadline.
// period is zero for one-shot timers.
type fakeWaiter struct {
	at     time.Time
	period time.Duration
	ch     chan time.Time
}

// NewFakeClock creates a FakeClock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the fake time elapsed since t.
func (c *FakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// After returns a channel that receives the fake time once the clock
// has advanced by d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addWaiter(d, 0).ch
}

// NewTicker returns a ticker that fires every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return &fakeTicker{clock: c, w: c.addWaiter(d, d)}
}

// Advance moves the clock forward by d, firing due waiters in order.
// Deliveries use a buffered channel and are dropped if the receiver has
// not drained the previous fire, matching time.Ticker semantics.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.now.Add(d)
	for {
		next := c.nextWaiter(target)
		if next == nil {
			break
		}
		c.now = next.at
		select {
		case next.ch <- c.now:
		default:
		}
		if next.period > 0 {
			next.at = next.at.Add(next.period)
		} else {
			c.removeWaiter(next)
		}
	}
	c.now = target
}

// addWaiter must be called with the mutex held.
func (c *FakeClock) addWaiter(d, period time.Duration) *fakeWaiter {
	w := &fakeWaiter{
		at:     c.now.Add(d),
		period: period,
		ch:     make(chan time.Time, 1),
	}
	c.waiters = append(c.waiters, w)
	return w
}

// nextWaiter returns the earliest waiter due at or before limit.
// Must be called with the mutex held.
func (c *FakeClock) nextWaiter(limit time.Time) *fakeWaiter {
	var next *fakeWaiter
	for _, w := range c.waiters {
		if w.at.After(limit) {
			continue
		}
		if next == nil || w.at.Before(next.at) {
			next = w
		}
	}
	return next
}

// removeWaiter must be called with the mutex held.
func (c *FakeClock) removeWaiter(target *fakeWaiter) {
	for i, w := range c.waiters {
		if w == target {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

type fakeTicker struct {
	clock *FakeClock
	w     *fakeWaiter
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.w.ch
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.clock.removeWaiter(t.w)
}
