package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"buildwatch/internal/domain"
)

type queued struct {
	ctx   context.Context
	event domain.Event
}

// subscription owns an unbounded mailbox drained by one goroutine, so a
// subscriber sees events in publish order and a slow subscriber never blocks
// the publisher.
type subscription struct {
	id      uint64
	handler domain.EventHandler

	mu      sync.Mutex
	queue   []queued
	stopped bool
	wake    chan struct{}
}

func newSubscription(id uint64, handler domain.EventHandler) *subscription {
	return &subscription{id: id, handler: handler, wake: make(chan struct{}, 1)}
}

func (s *subscription) enqueue(ctx context.Context, event domain.Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, queued{ctx: ctx, event: event})
	s.mu.Unlock()
	s.signal()
}

func (s *subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// stop ends the mailbox. With drain set, already queued events are still
// delivered; otherwise they are dropped.
func (s *subscription) stop(drain bool) {
	s.mu.Lock()
	s.stopped = true
	if !drain {
		s.queue = nil
	}
	s.mu.Unlock()
	s.signal()
}

func (s *subscription) next() (queued, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue[0] = queued{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return item, true
		}
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return queued{}, false
		}
		<-s.wake
	}
}

// Bus is an in-process, goroutine-safe event bus.
type Bus struct {
	mu      sync.RWMutex
	typed   map[domain.EventType][]*subscription
	allSubs []*subscription
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		typed:  make(map[domain.EventType][]*subscription),
		logger: logger,
	}
}

// Publish queues an event for matching typed subscribers and all-event
// subscribers. It never blocks on a handler.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.typed[event.Type] {
		sub.enqueue(ctx, event)
	}
	for _, sub := range b.allSubs {
		sub.enqueue(ctx, event)
	}
}

func (b *Bus) start(sub *subscription) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			item, ok := sub.next()
			if !ok {
				return
			}
			b.invoke(sub, item)
		}
	}()
}

func (b *Bus) invoke(sub *subscription, item queued) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(item.event.Type),
				"panic", r,
			)
		}
	}()
	sub.handler(item.ctx, item.event)
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	sub := newSubscription(b.nextID.Add(1), handler)

	b.mu.Lock()
	b.typed[eventType] = append(b.typed[eventType], sub)
	b.mu.Unlock()
	b.start(sub)

	return func() {
		b.mu.Lock()
		b.typed[eventType] = remove(b.typed[eventType], sub.id)
		b.mu.Unlock()
		sub.stop(false)
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	sub := newSubscription(b.nextID.Add(1), handler)

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()
	b.start(sub)

	return func() {
		b.mu.Lock()
		b.allSubs = remove(b.allSubs, sub.id)
		b.mu.Unlock()
		sub.stop(false)
	}
}

func remove(subs []*subscription, id uint64) []*subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// Close prevents new publishes and waits until every queued event has been
// handled. Close is idempotent and must not be called from a handler.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.RLock()
	for _, subs := range b.typed {
		for _, sub := range subs {
			sub.stop(true)
		}
	}
	for _, sub := range b.allSubs {
		sub.stop(true)
	}
	b.mu.RUnlock()
	b.wg.Wait()
}
