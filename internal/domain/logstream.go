package domain

import (
	"context"
	"fmt"
)

// ConnectionState is the lifecycle state of one log stream session.
//
// IDLE -> CONNECTING -> OPEN -> {CLOSED_CLEAN, CLOSED_ERROR}. A session that is
// replaced by a newer one while still running moves to SUPERSEDED instead.
// Every terminal state is absorbing.
type ConnectionState int

const (
	ConnIdle ConnectionState = iota
	ConnConnecting
	ConnOpen
	ConnClosedClean
	ConnClosedError
	ConnSuperseded
)

var connectionStateNames = map[ConnectionState]string{
	ConnIdle:        "idle",
	ConnConnecting:  "connecting",
	ConnOpen:        "open",
	ConnClosedClean: "closed_clean",
	ConnClosedError: "closed_error",
	ConnSuperseded:  "superseded",
}

func (s ConnectionState) String() string {
	if name, ok := connectionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// Running reports whether a connection attempt is in flight or open.
func (s ConnectionState) Running() bool {
	return s == ConnConnecting || s == ConnOpen
}

// Terminal reports whether no further transitions can happen.
func (s ConnectionState) Terminal() bool {
	return s == ConnClosedClean || s == ConnClosedError || s == ConnSuperseded
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ConnectionState) UnmarshalText(b []byte) error {
	for state, name := range connectionStateNames {
		if name == string(b) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q: %w", string(b), ErrInvalidInput)
}

// LogConn is one live connection to a task's log channel.
type LogConn interface {
	// Read blocks until the next payload arrives. It returns io.EOF once the
	// server closed the channel cleanly; any other error is a connection failure.
	Read(ctx context.Context) (string, error)
	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// LogTransport opens connections to log channels addressed by task ID.
type LogTransport interface {
	Dial(ctx context.Context, taskID string) (LogConn, error)
}
