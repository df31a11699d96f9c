package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventTaskAttached     EventType = "task.attached"
	EventTaskLaunchFailed EventType = "task.launch_failed"
	EventTaskFinished     EventType = "task.finished"

	EventLogLine  EventType = "log.line"
	EventLogState EventType = "log.state"

	EventProgressUpdated EventType = "progress.updated"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TaskAttachedPayload is carried by EventTaskAttached.
type TaskAttachedPayload struct {
	TaskID    string `json:"task_id"`
	ProjectID string `json:"project_id,omitempty"`
	Tag       string `json:"tag,omitempty"`
}

// TaskLaunchFailedPayload is carried by EventTaskLaunchFailed.
type TaskLaunchFailedPayload struct {
	ProjectID string `json:"project_id"`
	Tag       string `json:"tag"`
	Error     string `json:"error"`
	Code      string `json:"code"`
}

// TaskFinishedPayload is carried by EventTaskFinished.
type TaskFinishedPayload struct {
	TaskID  string     `json:"task_id"`
	Outcome RunOutcome `json:"outcome"`
	Lines   int        `json:"lines"`
}

// LogLinePayload is carried by EventLogLine.
type LogLinePayload struct {
	TaskID string `json:"task_id"`
	Line   string `json:"line"`
	// Notice is set for lines generated locally (connected, error, closed)
	// rather than received from the channel.
	Notice bool `json:"notice,omitempty"`
}

// LogStatePayload is carried by EventLogState.
type LogStatePayload struct {
	TaskID string          `json:"task_id"`
	State  ConnectionState `json:"state"`
	Error  string          `json:"error,omitempty"`
}

// NewEvent builds an event with a JSON-encoded payload. A payload that fails
// to encode is dropped and the event is sent bare.
func NewEvent(t EventType, sessionID string, payload any) Event {
	ev := Event{Type: t, Timestamp: time.Now(), SessionID: sessionID}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

// DecodePayload unmarshals an event payload into v.
func DecodePayload[T any](ev Event) (T, error) {
	var v T
	if len(ev.Payload) == 0 {
		return v, nil
	}
	err := json.Unmarshal(ev.Payload, &v)
	return v, err
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers. Each subscriber
	// receives events in publish order.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains queued events and prevents new publishes.
	Close()
}
