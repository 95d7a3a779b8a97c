// Package timeutil abstracts wall-clock access so interval and eviction
// logic can be driven deterministically in tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock supplies the current time and tickers. Production code uses
// SystemClock; tests use a FakeClock advanced manually.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                  { return time.Now() }
func (SystemClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{ticker: time.NewTicker(d)}
}

type systemTicker struct {
	ticker *time.Ticker
}

func (t *systemTicker) C() <-chan time.Time { return t.ticker.C }
func (t *systemTicker) Stop()               { t.ticker.Stop() }

// FakeClock is a manually advanced clock for tests. Advancing the clock
// delivers any ticks that fall due, in order.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
}

// NewFake returns a FakeClock frozen at start.
func NewFake(start time.Time) *FakeClock {
	return &FakeClock{current: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *FakeClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("timeutil: non-positive ticker interval")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{
		clock:    c,
		interval: d,
		next:     c.current.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing due tickers as it goes.
func (c *FakeClock) Advance(d time.Duration) {
	c.SetTime(c.Now().Add(d))
}

// SetTime jumps the clock to t. Tickers fire at most once per pending
// interval; a reader that never drains its channel does not block Advance.
func (c *FakeClock) SetTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
	for _, tk := range c.tickers {
		for !tk.stopped && !tk.next.After(c.current) {
			select {
			case tk.ch <- tk.next:
			default:
			}
			tk.next = tk.next.Add(tk.interval)
		}
	}
}

type fakeTicker struct {
	clock    *FakeClock
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}
