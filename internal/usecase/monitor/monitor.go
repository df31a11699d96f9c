// Package monitor ties a task launch to its progress indicator and its live
// log session, and republishes everything that happens as bus events.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"buildwatch/internal/domain"
	"buildwatch/internal/infra/config"
	"buildwatch/internal/infra/tracer"
	"buildwatch/internal/usecase/logstream"
	"buildwatch/internal/usecase/progress"
)

// Config holds configuration for the Monitor.
type Config struct {
	Sentinel string          // completion marker line (default: config.DefaultSentinel)
	Progress progress.Config // OnChange is owned by the monitor
}

// Target is what Restart repeats.
type Target struct {
	ProjectID string
	Tag       string
	TaskID    string
	// Attached is set when the task was attached directly rather than
	// launched; Restart then re-attaches instead of launching again.
	Attached bool
}

// tracked is the monitor's view of one log session.
type tracked struct {
	taskID    string
	projectID string
	tag       string
	lines     int
	finalized bool
}

// Monitor coordinates one watched task at a time.
type Monitor struct {
	launcher domain.TaskLauncher
	bus      domain.EventBus
	logger   *slog.Logger
	sentinel string

	sim      *progress.Simulator
	consumer *logstream.Consumer

	// opMu serializes Launch, Attach and Restart. It is never taken from
	// session or simulator callbacks.
	opMu   sync.Mutex
	target Target

	// mu guards the fields below. Callbacks take it briefly and never call
	// out while holding it.
	mu       sync.Mutex
	next     *tracked
	sessions map[string]*tracked
}

// New creates a Monitor.
func New(cfg Config, launcher domain.TaskLauncher, transport domain.LogTransport, bus domain.EventBus, logger *slog.Logger) *Monitor {
	if cfg.Sentinel == "" {
		cfg.Sentinel = config.DefaultSentinel
	}
	m := &Monitor{
		launcher: launcher,
		bus:      bus,
		logger:   logger,
		sentinel: cfg.Sentinel,
		sessions: make(map[string]*tracked),
	}

	pcfg := cfg.Progress
	pcfg.OnChange = m.onProgress
	m.sim = progress.NewSimulator(pcfg)
	m.consumer = logstream.NewConsumer(transport, m.onSession, logger)
	return m
}

// Launch starts a build of projectID at tag and attaches to its log. An empty
// tag means domain.DefaultTag. On launch failure the indicator shows failure
// and a task.launch_failed event is published.
func (m *Monitor) Launch(ctx context.Context, projectID, tag string) (string, error) {
	if tag == "" {
		tag = domain.DefaultTag
	}
	ctx, span := tracer.StartSpan(ctx, "monitor.launch",
		trace.WithAttributes(tracer.StringAttr("project.id", projectID), tracer.StringAttr("task.tag", tag)))

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.target = Target{ProjectID: projectID, Tag: tag}
	m.consumer.Stop()
	m.sim.Start()

	taskID, err := m.launcher.Execute(ctx, projectID, tag)
	if err != nil {
		m.sim.Fail()
		code := domain.ErrorCodeOf(err)
		m.logger.Warn("task launch failed", "project_id", projectID, "tag", tag, "code", code, "error", err)
		m.bus.Publish(ctx, domain.NewEvent(domain.EventTaskLaunchFailed, "", domain.TaskLaunchFailedPayload{
			ProjectID: projectID,
			Tag:       tag,
			Error:     err.Error(),
			Code:      string(code),
		}))
		err = domain.NewDomainError("Monitor.Launch", fmt.Errorf("%w: %w", domain.ErrLaunchFailed, err), projectID)
		tracer.End(span, err)
		return "", err
	}

	m.target.TaskID = taskID
	span.SetAttributes(tracer.StringAttr("task.id", taskID))
	m.logger.Info("task launched", "project_id", projectID, "tag", tag, "task_id", taskID)

	err = m.attachLocked(ctx, &tracked{taskID: taskID, projectID: projectID, tag: tag})
	tracer.End(span, err)
	if err != nil {
		return "", err
	}
	return taskID, nil
}

// Attach follows the log of an already running task.
func (m *Monitor) Attach(ctx context.Context, taskID string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.target = Target{TaskID: taskID, Attached: true}
	m.consumer.Stop()
	m.sim.Start()
	return m.attachLocked(ctx, &tracked{taskID: taskID})
}

// attachLocked opens the log session. The task.attached event is published
// from the session's first state change so it always precedes the
// session's own events.
func (m *Monitor) attachLocked(ctx context.Context, t *tracked) error {
	ctx, span := tracer.StartSpan(ctx, "monitor.attach",
		trace.WithAttributes(tracer.StringAttr("task.id", t.taskID)))

	m.mu.Lock()
	m.next = t
	m.mu.Unlock()

	session, err := m.consumer.Start(ctx, t.taskID)

	m.mu.Lock()
	m.next = nil
	m.mu.Unlock()

	if err != nil {
		m.sim.Fail()
		tracer.End(span, err)
		return domain.WrapOp("Monitor.Attach", err)
	}
	span.SetAttributes(tracer.StringAttr("session.id", session.ID()))
	tracer.End(span, nil)
	return nil
}

// Restart repeats the last Launch, or the last Attach when the task was
// attached directly.
func (m *Monitor) Restart(ctx context.Context) error {
	m.opMu.Lock()
	target := m.target
	m.opMu.Unlock()

	switch {
	case target.Attached && target.TaskID != "":
		return m.Attach(ctx, target.TaskID)
	case target.ProjectID != "":
		_, err := m.Launch(ctx, target.ProjectID, target.Tag)
		return err
	default:
		return domain.NewDomainError("Monitor.Restart", domain.ErrNoTask, "")
	}
}

// Dismiss hides the progress indicator. The log session is left alone.
func (m *Monitor) Dismiss() {
	m.sim.Close()
}

// Stop abandons the current log session and halts the indicator.
func (m *Monitor) Stop() {
	m.consumer.Stop()
	m.sim.Close()
}

// Target returns what Restart would repeat.
func (m *Monitor) Target() Target {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.target
}

// Progress returns the current indicator snapshot.
func (m *Monitor) Progress() domain.ProgressState {
	return m.sim.State()
}

// Session returns the current log session, or nil.
func (m *Monitor) Session() *logstream.Session {
	return m.consumer.Current()
}

func (m *Monitor) onProgress(state domain.ProgressState) {
	m.bus.Publish(context.Background(), domain.NewEvent(domain.EventProgressUpdated, "", state))
}

// onSession runs under the session's lock; it may only publish and drive
// the simulator.
func (m *Monitor) onSession(u logstream.Update) {
	ctx := context.Background()

	switch u.Kind {
	case logstream.UpdateLine:
		m.bus.Publish(ctx, domain.NewEvent(domain.EventLogLine, u.SessionID, domain.LogLinePayload{
			TaskID: u.TaskID,
			Line:   u.Line,
			Notice: u.Notice,
		}))
		if u.Notice {
			return
		}
		if strings.TrimSpace(u.Line) == m.sentinel {
			m.finalize(ctx, u.SessionID, domain.OutcomeSuccess)
			return
		}
		m.mu.Lock()
		if t := m.sessions[u.SessionID]; t != nil {
			t.lines++
		}
		m.mu.Unlock()

	case logstream.UpdateState:
		payload := domain.LogStatePayload{TaskID: u.TaskID, State: u.State}
		if u.Err != nil {
			payload.Error = u.Err.Error()
		}

		if u.State == domain.ConnConnecting {
			m.register(ctx, u)
		}
		m.bus.Publish(ctx, domain.NewEvent(domain.EventLogState, u.SessionID, payload))

		switch u.State {
		case domain.ConnClosedClean:
			m.finalize(ctx, u.SessionID, domain.OutcomeSuccess)
		case domain.ConnClosedError:
			m.finalize(ctx, u.SessionID, domain.OutcomeFailure)
		case domain.ConnSuperseded:
			m.finalize(ctx, u.SessionID, domain.OutcomeSuperseded)
		}
	}
}

func (m *Monitor) register(ctx context.Context, u logstream.Update) {
	m.mu.Lock()
	t := m.next
	if t == nil || t.taskID != u.TaskID {
		t = &tracked{taskID: u.TaskID}
	}
	m.next = nil
	m.sessions[u.SessionID] = t
	m.mu.Unlock()

	m.bus.Publish(ctx, domain.NewEvent(domain.EventTaskAttached, u.SessionID, domain.TaskAttachedPayload{
		TaskID:    t.taskID,
		ProjectID: t.projectID,
		Tag:       t.tag,
	}))
}

// finalize ends a session's run exactly once. Success and failure drive the
// indicator; a superseded session leaves it to its successor.
func (m *Monitor) finalize(ctx context.Context, sessionID string, outcome domain.RunOutcome) {
	m.mu.Lock()
	t := m.sessions[sessionID]
	if t == nil || t.finalized {
		m.mu.Unlock()
		return
	}
	t.finalized = true
	lines := t.lines
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	switch outcome {
	case domain.OutcomeSuccess:
		m.sim.Finish()
	case domain.OutcomeFailure:
		m.sim.Fail()
	}

	m.logger.Info("task finished", "task_id", t.taskID, "session_id", sessionID, "outcome", outcome, "lines", lines)
	m.bus.Publish(ctx, domain.NewEvent(domain.EventTaskFinished, sessionID, domain.TaskFinishedPayload{
		TaskID:  t.taskID,
		Outcome: outcome,
		Lines:   lines,
	}))
}
