// Package poll holds the small timing policies shared by the protocol and
// terminal layers: bounded polling against a deadline, a retry ceiling and
// an idle detector. All of them take a Clock so they can run against a
// manual clock in tests.
package poll

import (
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by Poller.Until when the deadline passes before the
// condition holds.
var ErrTimeout = errors.New("poll deadline exceeded")

type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// ManualClock is a Clock whose Sleep advances time instantly. The zero value
// starts at the zero time.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  time.Duration
	sleeps int
}

func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Unix(1700000000, 0)}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps++
}

// Advance moves the clock forward without counting as a sleep.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Slept returns the total duration and number of Sleep calls so far.
func (c *ManualClock) Slept() (time.Duration, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept, c.sleeps
}

// Poller evaluates a condition every Interval until it holds or Timeout
// elapses.
type Poller struct {
	Clock    Clock
	Timeout  time.Duration
	Interval time.Duration
}

// Until calls check until it reports done, returns an error, or the deadline
// passes. The condition is checked at least once when Timeout > 0.
func (p Poller) Until(check func() (bool, error)) error {
	clock := p.Clock
	if clock == nil {
		clock = SystemClock
	}
	deadline := clock.Now().Add(p.Timeout)
	for clock.Now().Before(deadline) {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		clock.Sleep(p.Interval)
	}
	return ErrTimeout
}

// Retry counts attempts against a fixed ceiling.
type Retry struct {
	Max      int
	attempts int
}

// Next records an attempt and reports whether it is still within the ceiling.
func (r *Retry) Next() bool {
	r.attempts++
	return r.attempts <= r.Max
}

func (r *Retry) Attempts() int { return r.attempts }

// Idle tracks the time since the last observed progress.
type Idle struct {
	clock   Clock
	timeout time.Duration
	last    time.Time
}

func NewIdle(clock Clock, timeout time.Duration) *Idle {
	if clock == nil {
		clock = SystemClock
	}
	return &Idle{clock: clock, timeout: timeout, last: clock.Now()}
}

// Progress resets the idle timer.
func (i *Idle) Progress() { i.last = i.clock.Now() }

// Quiet reports whether more than the idle timeout has passed since the last
// progress.
func (i *Idle) Quiet() bool { return i.clock.Now().Sub(i.last) > i.timeout }
