package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTag is used when a launch does not name a version tag.
const DefaultTag = "latest"

// TaskRecord is one server-side task execution as listed in project history.
type TaskRecord struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Tag       string    `json:"tag"`
	Status    string    `json:"status"`
	CreatedAt Timestamp `json:"created_at"`
}

// Timestamp is a server time that may or may not carry a zone offset.
// Naive values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q: %w", s, ErrInvalidInput)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// TaskLauncher starts a task on the server and returns its identifier.
type TaskLauncher interface {
	Execute(ctx context.Context, projectID, tag string) (string, error)
}

// RunOutcome is how a locally watched run ended.
type RunOutcome string

const (
	OutcomePending      RunOutcome = "pending"
	OutcomeSuccess      RunOutcome = "success"
	OutcomeFailure      RunOutcome = "failure"
	OutcomeLaunchFailed RunOutcome = "launch_failed"
	OutcomeSuperseded   RunOutcome = "superseded"
)

// Run is a locally recorded watch of one task.
type Run struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"task_id,omitempty"`
	ProjectID  string     `json:"project_id,omitempty"`
	Tag        string     `json:"tag,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Outcome    RunOutcome `json:"outcome"`
	Lines      int        `json:"lines"`
	Error      string     `json:"error,omitempty"`
}

// RunFilter narrows a run listing.
type RunFilter struct {
	ProjectID string
	Limit     int
}

// RunStore persists local run history.
type RunStore interface {
	Insert(ctx context.Context, run Run) error
	// Finish finalizes the most recent pending run for taskID.
	Finish(ctx context.Context, taskID string, outcome RunOutcome, lines int, at time.Time) error
	List(ctx context.Context, filter RunFilter) ([]Run, error)
}
