// Package countdown re-evaluates auction deadlines on a fixed tick and
// fires a completion callback once per countdown.
package countdown

import (
	"sync"
	"time"
)

// Remaining is the time left split into display units.
type Remaining struct {
	Days    int  `json:"days"`
	Hours   int  `json:"hours"`
	Minutes int  `json:"minutes"`
	Seconds int  `json:"seconds"`
	Expired bool `json:"expired"`
}

// Until splits end-now into units, clamped at zero.
func Until(end, now time.Time) Remaining {
	d := end.Sub(now)
	if d <= 0 {
		return Remaining{Expired: true}
	}
	secs := int(d / time.Second)
	return Remaining{
		Days:    secs / 86400,
		Hours:   secs % 86400 / 3600,
		Minutes: secs % 3600 / 60,
		Seconds: secs % 60,
	}
}

// Option tweaks a Countdown.
type Option func(*Countdown)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *Countdown) { c.now = now } }

// WithTick is called with the remaining time on every evaluation.
func WithTick(fn func(Remaining)) Option { return func(c *Countdown) { c.onTick = fn } }

type Countdown struct {
	tick       time.Duration
	now        func() time.Time
	onTick     func(Remaining)
	onComplete func()

	mu       sync.Mutex
	end      time.Time
	finished bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Start evaluates immediately and then every tick until end is reached,
// then calls onComplete exactly once. A deadline already in the past
// completes on the first evaluation.
func Start(end time.Time, tick time.Duration, onComplete func(), opts ...Option) *Countdown {
	c := &Countdown{
		tick:       tick,
		now:        time.Now,
		onComplete: onComplete,
		end:        end,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	go c.run()
	return c
}

func (c *Countdown) run() {
	defer close(c.done)
	t := time.NewTicker(c.tick)
	defer t.Stop()
	for {
		if c.evaluate() {
			return
		}
		select {
		case <-c.stop:
			return
		case <-t.C:
		}
	}
}

// evaluate reports whether the countdown is over.
func (c *Countdown) evaluate() bool {
	c.mu.Lock()
	rem := Until(c.end, c.now())
	if rem.Expired {
		c.finished = true
	}
	c.mu.Unlock()

	select {
	case <-c.stop:
		return true
	default:
	}
	if c.onTick != nil {
		c.onTick(rem)
	}
	if rem.Expired && c.onComplete != nil {
		c.onComplete()
	}
	return rem.Expired
}

// Reset moves the deadline (soft-close extension). It has no effect once
// the countdown completed and reports whether the new end was taken.
func (c *Countdown) Reset(end time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return false
	}
	c.end = end
	return true
}

// End is the current deadline.
func (c *Countdown) End() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.end
}

// Stop cancels the countdown without completing it. Safe to call repeatedly.
func (c *Countdown) Stop() { c.stopOnce.Do(func() { close(c.stop) }) }

// Done is closed when the countdown goroutine exits (completed or stopped).
func (c *Countdown) Done() <-chan struct{} { return c.done }
