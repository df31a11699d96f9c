package monitor

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"buildwatch/internal/domain"
)

// Recorder writes run history from monitor events.
type Recorder struct {
	store  domain.RunStore
	logger *slog.Logger
}

// NewRecorder creates a Recorder backed by store.
func NewRecorder(store domain.RunStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Subscribe attaches the recorder to bus and returns the unsubscribe func.
// A single subscription keeps a run's insert ahead of its finish.
func (r *Recorder) Subscribe(bus domain.EventBus) func() {
	return bus.SubscribeAll(r.handle)
}

func (r *Recorder) handle(ctx context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventTaskAttached:
		r.onAttached(ctx, ev)
	case domain.EventTaskLaunchFailed:
		r.onLaunchFailed(ctx, ev)
	case domain.EventTaskFinished:
		r.onFinished(ctx, ev)
	}
}

func (r *Recorder) onAttached(ctx context.Context, ev domain.Event) {
	p, err := domain.DecodePayload[domain.TaskAttachedPayload](ev)
	if err != nil {
		r.logger.Warn("decode task.attached", "error", err)
		return
	}
	run := domain.Run{
		ID:        ulid.Make().String(),
		TaskID:    p.TaskID,
		ProjectID: p.ProjectID,
		Tag:       p.Tag,
		StartedAt: ev.Timestamp,
		Outcome:   domain.OutcomePending,
	}
	if err := r.store.Insert(ctx, run); err != nil {
		r.logger.Error("record run", "task_id", p.TaskID, "error", err)
	}
}

func (r *Recorder) onLaunchFailed(ctx context.Context, ev domain.Event) {
	p, err := domain.DecodePayload[domain.TaskLaunchFailedPayload](ev)
	if err != nil {
		r.logger.Warn("decode task.launch_failed", "error", err)
		return
	}
	at := ev.Timestamp
	run := domain.Run{
		ID:         ulid.Make().String(),
		ProjectID:  p.ProjectID,
		Tag:        p.Tag,
		StartedAt:  at,
		FinishedAt: &at,
		Outcome:    domain.OutcomeLaunchFailed,
		Error:      p.Error,
	}
	if err := r.store.Insert(ctx, run); err != nil {
		r.logger.Error("record failed launch", "project_id", p.ProjectID, "error", err)
	}
}

func (r *Recorder) onFinished(ctx context.Context, ev domain.Event) {
	p, err := domain.DecodePayload[domain.TaskFinishedPayload](ev)
	if err != nil {
		r.logger.Warn("decode task.finished", "error", err)
		return
	}
	if err := r.store.Finish(ctx, p.TaskID, p.Outcome, p.Lines, ev.Timestamp); err != nil {
		r.logger.Error("finish run", "task_id", p.TaskID, "outcome", p.Outcome, "error", err)
	}
}
