package countdown

import (
	"context"
	"sync"
	"time"

	applog "tradepost/internal/log"
)

// Closer ends an auction when its countdown completes.
type Closer interface {
	Close(ctx context.Context, auctionID string) error
}

// Deadline is an auction to watch.
type Deadline struct {
	ID  string
	End time.Time
}

// Scheduler keeps one countdown per active auction.
type Scheduler struct {
	tick   time.Duration
	closer Closer

	mu      sync.Mutex
	ctx     context.Context
	running map[string]*Countdown
}

func NewScheduler(tick time.Duration, closer Closer) *Scheduler {
	return &Scheduler{
		tick:    tick,
		closer:  closer,
		ctx:     context.Background(),
		running: make(map[string]*Countdown),
	}
}

// Watch starts a countdown for id, or moves its deadline when one runs.
func (s *Scheduler) Watch(id string, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.running[id]; ok && c.Reset(end) {
		return
	}
	var c *Countdown
	c = Start(end, s.tick, func() { s.complete(id, &c) })
	s.running[id] = c
}

// Forget stops watching id (auction cancelled or closed elsewhere).
func (s *Scheduler) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.running[id]; ok {
		c.Stop()
		delete(s.running, id)
	}
}

// Active is the number of running countdowns.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// complete receives the address of the countdown variable; it is read
// under the lock because the callback may start before Watch stored it.
func (s *Scheduler) complete(id string, c **Countdown) {
	s.mu.Lock()
	ctx, closer := s.ctx, s.closer
	if s.running[id] == *c {
		delete(s.running, id)
	}
	s.mu.Unlock()

	if closer == nil {
		return
	}
	if err := closer.Close(ctx, id); err != nil {
		applog.Fail("auction.close.fail", err, map[string]any{"auction_id": id})
	}
}

// Run watches every deadline returned by load and blocks until ctx ends,
// then stops all countdowns.
func (s *Scheduler) Run(ctx context.Context, load func(context.Context) ([]Deadline, error)) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	deadlines, err := load(ctx)
	if err != nil {
		return err
	}
	for _, d := range deadlines {
		s.Watch(d.ID, d.End)
	}
	applog.Event("scheduler.started", map[string]any{"auctions": len(deadlines)})

	<-ctx.Done()
	s.mu.Lock()
	for id, c := range s.running {
		c.Stop()
		delete(s.running, id)
	}
	s.mu.Unlock()
	return nil
}
