package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildwatch/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func newEvent(t domain.EventType) domain.Event {
	return domain.Event{Type: t, Timestamp: time.Now()}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventLogLine, func(_ context.Context, e domain.Event) {
		if e.Type == domain.EventLogLine {
			got.Add(1)
		}
	})
	bus.Subscribe(domain.EventLogState, func(_ context.Context, _ domain.Event) {
		t.Error("state subscriber must not see log lines")
	})

	bus.Publish(context.Background(), newEvent(domain.EventLogLine))
	bus.Close()
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventLogLine))
	bus.Publish(context.Background(), newEvent(domain.EventTaskAttached))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.EventLogLine, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	unsub()
	unsub()

	bus.Publish(context.Background(), newEvent(domain.EventLogLine))
	bus.Close()

	if got.Load() != 0 {
		t.Fatalf("expected no delivery after unsub, got %d", got.Load())
	}
}

func TestDeliveryOrderPerSubscriber(t *testing.T) {
	bus := newTestBus()

	var (
		mu   sync.Mutex
		seen []string
	)
	bus.Subscribe(domain.EventLogLine, func(_ context.Context, e domain.Event) {
		p, err := domain.DecodePayload[domain.LogLinePayload](e)
		require.NoError(t, err)
		mu.Lock()
		seen = append(seen, p.Line)
		mu.Unlock()
	})

	var want []string
	for i := 0; i < 500; i++ {
		line := fmt.Sprintf("line %d", i)
		want = append(want, line)
		bus.Publish(context.Background(), domain.NewEvent(domain.EventLogLine, "s", domain.LogLinePayload{Line: line}))
	}
	bus.Close()

	assert.Equal(t, want, seen)
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := newTestBus()

	release := make(chan struct{})
	var got atomic.Int32
	bus.Subscribe(domain.EventLogLine, func(_ context.Context, _ domain.Event) {
		<-release
		got.Add(1)
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(context.Background(), newEvent(domain.EventLogLine))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	close(release)
	bus.Close()
	assert.Equal(t, int32(100), got.Load())
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventLogLine, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.EventLogLine))
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 100 {
		t.Fatalf("expected 100, got %d", got.Load())
	}
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventLogLine, func(_ context.Context, _ domain.Event) {
		panic("boom")
	})
	bus.Subscribe(domain.EventLogLine, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventLogLine))
	bus.Publish(context.Background(), newEvent(domain.EventLogLine))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2 (second handler), got %d", got.Load())
	}
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.EventLogLine, func(_ context.Context, _ domain.Event) {
		time.Sleep(20 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.EventLogLine))
	bus.Publish(context.Background(), newEvent(domain.EventLogLine))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected both queued events handled, got %d", got.Load())
	}

	bus.Publish(context.Background(), newEvent(domain.EventLogLine))
	time.Sleep(20 * time.Millisecond)
	if got.Load() != 2 {
		t.Fatalf("expected no delivery after close, got %d", got.Load())
	}
	bus.Close()
}
