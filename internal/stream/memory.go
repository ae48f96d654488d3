// Package stream provides the event-log transports: a NATS JetStream
// binding for durable, replayable delivery and an in-process log for tests
// and brokerless runs.
package stream

import (
	"context"
	"sync"

	"github.com/chessfree/chessboard-server-go/internal/event"
)

// Memory is an in-process event log. Publish appends to the log and fans
// out to live consumers; Consume first delivers the backlog in commit
// order, then live events. It implements both game.EventPublisher and
// game.EventSource.
type Memory struct {
	mu     sync.Mutex
	events []event.Event
	subs   []chan event.Event

	caughtUp     chan struct{}
	caughtUpOnce sync.Once
}

// NewMemory creates an empty in-process log.
func NewMemory() *Memory {
	return &Memory{
		caughtUp: make(chan struct{}),
	}
}

// Publish appends the event and delivers it to live consumers.
func (m *Memory) Publish(ctx context.Context, ev event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	for _, ch := range m.subs {
		ch <- ev
	}
	return nil
}

// Consume delivers the stored backlog, closes the caught-up signal, then
// keeps delivering live events until the context is canceled or the
// handler fails.
func (m *Memory) Consume(ctx context.Context, handler func(event.Event) error) error {
	m.mu.Lock()
	backlog := append([]event.Event(nil), m.events...)
	live := make(chan event.Event, 256)
	m.subs = append(m.subs, live)
	m.mu.Unlock()

	defer m.unsubscribe(live)

	for _, ev := range backlog {
		if err := handler(ev); err != nil {
			return err
		}
	}
	m.caughtUpOnce.Do(func() { close(m.caughtUp) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-live:
			if err := handler(ev); err != nil {
				return err
			}
		}
	}
}

// CaughtUp closes once the backlog present at subscription time has been
// delivered.
func (m *Memory) CaughtUp() <-chan struct{} {
	return m.caughtUp
}

// Events returns a copy of the log in commit order.
func (m *Memory) Events() []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]event.Event(nil), m.events...)
}

func (m *Memory) unsubscribe(ch chan event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subs {
		if sub == ch {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}
