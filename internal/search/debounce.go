package search

import (
	"strings"
	"sync"
	"time"
)

// Debouncer delays a query until no newer one arrived for the quiet window,
// and drops a query identical to the last one it fired.
type Debouncer struct {
	wait time.Duration
	fire func(string)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	last    string
	fired   bool
	stopped bool
}

func NewDebouncer(wait time.Duration, fire func(query string)) *Debouncer {
	return &Debouncer{wait: wait, fire: fire}
}

// Submit records the latest query and restarts the quiet window.
func (d *Debouncer) Submit(query string) {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.expire(gen, query) })
}

func (d *Debouncer) expire(gen uint64, query string) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || query == "" || (d.fired && query == d.last) {
		d.mu.Unlock()
		return
	}
	d.last, d.fired = query, true
	d.mu.Unlock()

	d.fire(query)
}

// Stop cancels any pending query; later submits are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
