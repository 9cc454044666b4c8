package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tradepost/internal/live"
	applog "tradepost/internal/log"
)

// Clock is injectable so tests can move time.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

func newID() string { return uuid.NewString() }

type pending struct {
	channel string
	typ     string
	data    any
}

// outbox collects live events and metric updates while a database
// transaction is open; both run only after commit so subscribers and
// counters never see rolled back state.
type outbox struct {
	events    []pending
	committed []func()
}

// onCommit defers fn until flush.
func (o *outbox) onCommit(fn func()) {
	o.committed = append(o.committed, fn)
}

func (o *outbox) add(channel, typ string, data any) {
	o.events = append(o.events, pending{channel: channel, typ: typ, data: data})
}

func (o *outbox) flush(ctx context.Context, bus live.Bus) {
	for _, fn := range o.committed {
		fn()
	}
	o.committed = nil
	for _, e := range o.events {
		if err := live.Emit(ctx, bus, e.channel, e.typ, e.data); err != nil {
			applog.Fail("live.publish.fail", err, map[string]any{"channel": e.channel, "type": e.typ})
		}
	}
	o.events = nil
}
