package countdown_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tradepost/internal/countdown"
)

func TestUntil(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		end  time.Time
		want countdown.Remaining
	}{
		{now.Add(26*time.Hour + 3*time.Minute + 4*time.Second + 900*time.Millisecond), countdown.Remaining{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}},
		{now.Add(59 * time.Second), countdown.Remaining{Seconds: 59}},
		{now, countdown.Remaining{Expired: true}},
		{now.Add(-time.Hour), countdown.Remaining{Expired: true}},
	}
	for _, c := range cases {
		if got := countdown.Until(c.end, now); got != c.want {
			t.Fatalf("Until(%v) = %+v, want %+v", c.end.Sub(now), got, c.want)
		}
	}
}

func TestCompletesExactlyOnce(t *testing.T) {
	var calls int32
	c := countdown.Start(time.Now().Add(30*time.Millisecond), 5*time.Millisecond, func() {
		atomic.AddInt32(&calls, 1)
	})
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("countdown never completed")
	}
	time.Sleep(50 * time.Millisecond)
	c.Stop()
	c.Stop()
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("onComplete called %d times", n)
	}
}

func TestPastDeadlineCompletesImmediately(t *testing.T) {
	var calls int32
	c := countdown.Start(time.Now().Add(-time.Minute), time.Hour, func() { atomic.AddInt32(&calls, 1) })
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("expired countdown did not complete on first evaluation")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatal("want one completion")
	}
}

func TestStopPreventsCompletion(t *testing.T) {
	var calls int32
	c := countdown.Start(time.Now().Add(40*time.Millisecond), 5*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	c.Stop()
	<-c.Done()
	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("stopped countdown completed")
	}
}

func TestResetExtendsDeadline(t *testing.T) {
	start := time.Now()
	var firedAt atomic.Value
	c := countdown.Start(start.Add(30*time.Millisecond), 5*time.Millisecond, func() { firedAt.Store(time.Now()) })
	if !c.Reset(start.Add(120 * time.Millisecond)) {
		t.Fatal("reset refused on a running countdown")
	}
	<-c.Done()
	at := firedAt.Load().(time.Time)
	if at.Sub(start) < 120*time.Millisecond {
		t.Fatalf("fired after %v, before the extended deadline", at.Sub(start))
	}
	if c.Reset(time.Now().Add(time.Hour)) {
		t.Fatal("reset accepted after completion")
	}
}

func TestTickReportsRemaining(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	var seen []countdown.Remaining
	c := countdown.Start(now.Add(90*time.Second), time.Hour, nil,
		countdown.WithClock(func() time.Time { return now }),
		countdown.WithTick(func(r countdown.Remaining) {
			mu.Lock()
			seen = append(seen, r)
			mu.Unlock()
		}))
	defer c.Stop()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0].Minutes != 1 || seen[0].Seconds != 30 {
		t.Fatalf("first evaluation: %+v", seen)
	}
}

type closeRecorder struct {
	mu  sync.Mutex
	ids []string
	ch  chan string
}

func (r *closeRecorder) Close(_ context.Context, id string) error {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	r.ch <- id
	return nil
}

func TestSchedulerClosesEachAuctionOnce(t *testing.T) {
	rec := &closeRecorder{ch: make(chan string, 8)}
	s := countdown.NewScheduler(5*time.Millisecond, rec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	errc := make(chan error, 1)
	go func() {
		errc <- s.Run(ctx, func(context.Context) ([]countdown.Deadline, error) {
			return []countdown.Deadline{
				{ID: "a-1", End: now.Add(20 * time.Millisecond)},
				{ID: "a-2", End: now.Add(time.Hour)},
			}, nil
		})
	}()

	select {
	case id := <-rec.ch:
		if id != "a-1" {
			t.Fatalf("closed %q first", id)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not close the due auction")
	}

	s.Watch("a-3", time.Now().Add(10*time.Millisecond))
	s.Watch("a-3", time.Now().Add(40*time.Millisecond)) // soft close extension
	if got := <-rec.ch; got != "a-3" {
		t.Fatalf("got %q", got)
	}
	s.Forget("a-2")
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	if len(rec.ids) != 2 {
		t.Fatalf("closes: %v", rec.ids)
	}
	rec.mu.Unlock()
	if s.Active() != 0 {
		t.Fatalf("active countdowns left: %d", s.Active())
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
}
