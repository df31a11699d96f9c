// Package logstream keeps one live subscription to a task's log channel and
// buffers what it receives.
package logstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"buildwatch/internal/domain"
)

// Notices appended to the buffer for connection lifecycle events.
const (
	NoticeConnected = "✅ Connected to log stream, waiting for output..."
	NoticeClosed    = "🔌 Log stream connection closed."
)

// ErrorNotice renders the buffer entry for a connection failure.
func ErrorNotice(err error) string {
	return "❌ Log stream error: " + err.Error()
}

// UpdateKind distinguishes buffer appends from state transitions.
type UpdateKind int

const (
	UpdateLine UpdateKind = iota
	UpdateState
)

// Update describes one observable change of a session.
type Update struct {
	SessionID string
	TaskID    string
	Kind      UpdateKind

	// Line is set for UpdateLine. Notice marks locally generated lines.
	Line   string
	Notice bool

	// State is the state after the change; Err is set once it is CLOSED_ERROR.
	State domain.ConnectionState
	Err   error
}

// Observer receives session updates in the order they happen. It runs with
// the session lock held and must not call back into the session.
type Observer func(Update)

// Session is one subscription to one task's log channel. It is created by
// Consumer.Start and never reused.
type Session struct {
	id        string
	taskID    string
	transport domain.LogTransport
	observer  Observer
	logger    *slog.Logger

	mu     sync.Mutex
	state  domain.ConnectionState
	buffer []string
	err    error
	conn   domain.LogConn
	cancel context.CancelFunc

	done chan struct{}
}

func newSession(id, taskID string, transport domain.LogTransport, observer Observer, logger *slog.Logger) *Session {
	return &Session{
		id:        id,
		taskID:    taskID,
		transport: transport,
		observer:  observer,
		logger:    logger.With("session_id", id, "task_id", taskID),
		state:     domain.ConnIdle,
		done:      make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// TaskID returns the task whose channel this session follows.
func (s *Session) TaskID() string { return s.taskID }

// State returns the current connection state.
func (s *Session) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Running reports whether the session is connecting or open.
func (s *Session) Running() bool {
	return s.State().Running()
}

// Lines returns a copy of the buffer.
func (s *Session) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.buffer))
	copy(out, s.buffer)
	return out
}

// Err returns the connection error once the session is CLOSED_ERROR.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the session's connection goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// begin moves IDLE to CONNECTING and starts the connection goroutine.
func (s *Session) begin(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.state = domain.ConnConnecting
	s.emitStateLocked()
	s.mu.Unlock()

	go s.pump(ctx)
}

// pump delivers transport events one at a time, in transport order.
func (s *Session) pump(ctx context.Context) {
	defer close(s.done)

	conn, err := s.transport.Dial(ctx, s.taskID)
	if err != nil {
		if ctx.Err() != nil && !s.Running() {
			return
		}
		s.logger.Warn("log stream dial failed", "error", err)
		s.onError(err)
		s.onClose()
		return
	}
	defer conn.Close()

	if !s.onOpen(conn) {
		return
	}

	for {
		line, err := conn.Read(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.logger.Debug("log stream closed by server")
			case !s.Running():
				// superseded while blocked in Read
			default:
				s.logger.Warn("log stream read failed", "error", err)
				s.onError(err)
			}
			s.onClose()
			return
		}
		s.onMessage(line)
	}
}

func (s *Session) onOpen(conn domain.LogConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.ConnConnecting {
		return false
	}
	s.conn = conn
	s.appendLocked(NoticeConnected, true)
	s.state = domain.ConnOpen
	s.emitStateLocked()
	return true
}

func (s *Session) onMessage(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.ConnOpen {
		return
	}
	s.appendLocked(line, false)
}

func (s *Session) onError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Running() {
		return
	}
	s.err = &domain.ConnectionError{TaskID: s.taskID, Err: err}
	s.appendLocked(ErrorNotice(err), true)
	s.state = domain.ConnClosedError
	s.emitStateLocked()
}

// onClose appends the closed notice only if the session was still running;
// after an error or a supersession the close is silent and the terminal
// state is kept.
func (s *Session) onClose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Running() {
		return
	}
	s.appendLocked(NoticeClosed, true)
	s.state = domain.ConnClosedClean
	s.emitStateLocked()
}

// supersede silently abandons the session and force-closes its connection.
func (s *Session) supersede() {
	s.mu.Lock()
	conn, cancel := s.conn, s.cancel
	if s.state.Running() || s.state == domain.ConnIdle {
		s.state = domain.ConnSuperseded
		s.emitStateLocked()
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debug("closing superseded log stream", "error", err)
		}
	}
}

func (s *Session) appendLocked(line string, notice bool) {
	s.buffer = append(s.buffer, line)
	if s.observer != nil {
		s.observer(Update{
			SessionID: s.id,
			TaskID:    s.taskID,
			Kind:      UpdateLine,
			Line:      line,
			Notice:    notice,
			State:     s.state,
		})
	}
}

func (s *Session) emitStateLocked() {
	s.logger.Debug("log stream state", "state", s.state.String())
	if s.observer != nil {
		s.observer(Update{
			SessionID: s.id,
			TaskID:    s.taskID,
			Kind:      UpdateState,
			State:     s.state,
			Err:       s.err,
		})
	}
}
