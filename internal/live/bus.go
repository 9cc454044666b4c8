// Package live carries real-time updates: a publish/subscribe bus (Redis or
// in-process) and the websocket hub that fans bus messages out to clients.
package live

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// Message is one payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// Bus is a publish/subscribe transport. Patterns may end in '*'.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, pattern string) (<-chan Message, error)
}

// Envelope is the JSON shape of every live update.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func AuctionChannel(id string) string { return "auction:" + id }
func TxChannel(id string) string      { return "tx:" + id }
func UserChannel(id string) string    { return "user:" + id }

// Emit encodes an envelope and publishes it.
func Emit(ctx context.Context, b Bus, channel, typ string, data any) error {
	if b == nil {
		return nil
	}
	payload, err := json.Marshal(Envelope{Type: typ, Data: data})
	if err != nil {
		return err
	}
	return b.Publish(ctx, channel, payload)
}

func hasPattern(channel string) bool { return strings.ContainsAny(channel, "*?[") }

// matches supports exact names and a trailing '*' wildcard.
func matches(pattern, channel string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(channel, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == channel
}

const subBuffer = 128

// MemoryBus is the in-process Bus used when Redis is not configured.
// Slow subscribers lose messages rather than block publishers.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[*memSub]struct{}
}

type memSub struct {
	pattern string
	ch      chan Message
}

func NewMemoryBus() *MemoryBus { return &MemoryBus{subs: make(map[*memSub]struct{})} }

func (b *MemoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !matches(s.pattern, channel) {
			continue
		}
		select {
		case s.ch <- Message{Channel: channel, Payload: payload}:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	s := &memSub{pattern: pattern, ch: make(chan Message, subBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch, nil
}
