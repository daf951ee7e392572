// Package timeutil lets the hub, the advisory and the polling loops read time
// through an interface, so tests can step it deterministically.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the time source of the car status packages.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	// NewTicker ticks every d. Ticks that find the channel full are
	// dropped, so a slow consumer sees one pending tick, not a backlog.
	NewTicker(d time.Duration) Ticker
}

// Ticker is the part of time.Ticker the polling loops need.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock reads the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return wallTicker{time.NewTicker(d)}
}

type wallTicker struct{ t *time.Ticker }

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }

// MockClock only moves when Advance is called. Tickers created from it fire
// during Advance, at most once per call.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*mockTicker
}

// NewMockClock returns a clock frozen at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the clock forward by d and delivers a tick to every running
// ticker whose next deadline has passed. A jump spanning several intervals
// still delivers a single tick, and the next deadline is rebased on the new
// time.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*mockTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

func (c *MockClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("timeutil: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTicker{ch: make(chan time.Time, 1), every: d, due: c.now.Add(d)}
	c.tickers = append(c.tickers, t)
	return t
}

type mockTicker struct {
	ch    chan time.Time
	every time.Duration

	mu      sync.Mutex
	due     time.Time
	stopped bool
}

func (t *mockTicker) C() <-chan time.Time { return t.ch }

func (t *mockTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *mockTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || now.Before(t.due) {
		return
	}
	t.due = now.Add(t.every)
	select {
	case t.ch <- now:
	default:
	}
}
