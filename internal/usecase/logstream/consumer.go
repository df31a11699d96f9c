package logstream

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"buildwatch/internal/domain"
)

// Consumer owns the current log session. Starting a new session hands
// ownership over: the previous one is superseded before the new one dials.
type Consumer struct {
	transport domain.LogTransport
	observer  Observer
	logger    *slog.Logger

	mu      sync.Mutex
	current *Session
}

// NewConsumer creates a Consumer. observer may be nil.
func NewConsumer(transport domain.LogTransport, observer Observer, logger *slog.Logger) *Consumer {
	return &Consumer{
		transport: transport,
		observer:  observer,
		logger:    logger,
	}
}

// Start supersedes the current session, if any, and opens a new one for
// taskID. The returned session is already CONNECTING with an empty buffer;
// everything after that is observed through its state and buffer.
func (c *Consumer) Start(ctx context.Context, taskID string) (*Session, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, domain.NewDomainError("Consumer.Start", domain.ErrInvalidInput, "task id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old := c.current; old != nil {
		if old.Running() {
			c.logger.Info("superseding log stream", "task_id", old.TaskID(), "session_id", old.ID())
		}
		old.supersede()
	}

	s := newSession(ulid.Make().String(), taskID, c.transport, c.observer, c.logger)
	c.current = s
	s.begin(ctx)
	return s, nil
}

// Current returns the current session, or nil before the first Start.
func (c *Consumer) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stop silently abandons the current session.
func (c *Consumer) Stop() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s != nil {
		s.supersede()
	}
}
