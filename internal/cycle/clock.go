package cycle

import (
	"sync"
	"time"
)

// Clock abstracts time so the tick loop can be driven by tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is a cancellable repeating timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// FakeClock is a manually advanced Clock for tests.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
}

// NewFakeClock creates a FakeClock set to now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now without firing tickers.
func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Advance moves the clock forward by d and fires every live ticker once.
// A tick is dropped if the previous one has not been consumed yet.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*FakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, tk := range tickers {
		tk.fire(now)
	}
	return now
}

// NewTicker returns a FakeTicker fired by Advance.
func (c *FakeClock) NewTicker(time.Duration) Ticker {
	tk := &FakeTicker{ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers = append(c.tickers, tk)
	c.mu.Unlock()
	return tk
}

// Tickers returns the number of tickers that have not been stopped.
func (c *FakeClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, tk := range c.tickers {
		if !tk.isStopped() {
			n++
		}
	}
	return n
}

// FakeTicker is the Ticker handed out by FakeClock.
type FakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

// C returns the tick channel.
func (t *FakeTicker) C() <-chan time.Time { return t.ch }

// Stop prevents further ticks.
func (t *FakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *FakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *FakeTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
}
