package store

import (
	"context"
	"sync"
)

// Bus is an in-process publish/subscribe fan-out, generalizing
// common.SafeCh[T] from a single closable channel into a registry of
// per-channel subscriber lists. It mirrors the spec's "dedicated
// subscription connection" split structurally: a Bus cannot be used to run
// KV commands, even though both are backed by the same process here.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]chan []byte
}

func newBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan []byte),
	}
}

// Publish fans payload out to every subscriber currently registered on
// channel. Subscribers that are not ready to receive are skipped rather than
// blocking the publisher, matching the spec's "eventual consistency" note on
// set-then-publish ordering.
func (b *Bus) Publish(channel string, payload []byte) {
	b.mu.Lock()
	subs := append([]chan []byte(nil), b.subscribers[channel]...)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers handler to be called for every payload published on
// channel until ctx is done. It blocks the calling goroutine; callers run it
// in its own goroutine.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	ch := make(chan []byte, 64)

	b.mu.Lock()
	b.subscribers[channel] = append(b.subscribers[channel], ch)
	b.mu.Unlock()

	defer b.unsubscribe(channel, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-ch:
			handler(payload)
		}
	}
}

func (b *Bus) unsubscribe(channel string, target chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[channel]
	for i, ch := range subs {
		if ch == target {
			b.subscribers[channel] = append(subs[:i], subs[i+1:]...)

			break
		}
	}
}
