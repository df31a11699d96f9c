// Package plain renders a watched task without a terminal UI: log lines on
// one writer, a simulated progress bar on another.
package plain

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"buildwatch/internal/domain"
)

// barScale maps one-decimal percentages onto integer bar steps.
const barScale = 10

// Result is how the watched task ended.
type Result struct {
	TaskID  string
	Outcome domain.RunOutcome
	Lines   int
	Err     string
}

// Success reports whether the task finished cleanly.
func (r Result) Success() bool { return r.Outcome == domain.OutcomeSuccess }

// Renderer prints bus events. It is driven by a single bus subscription, so
// its state needs no locking.
type Renderer struct {
	out io.Writer
	bar *progressbar.ProgressBar

	session string
	done    chan Result
}

// New creates a Renderer printing lines to out and the bar to barOut.
// A nil barOut disables the bar.
func New(out, barOut io.Writer) *Renderer {
	r := &Renderer{out: out, done: make(chan Result, 1)}
	if barOut != nil {
		r.bar = progressbar.NewOptions(100*barScale,
			progressbar.OptionSetWriter(barOut),
			progressbar.OptionSetDescription("waiting"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	return r
}

// Subscribe attaches the renderer to bus and returns the unsubscribe func.
func (r *Renderer) Subscribe(bus domain.EventBus) func() {
	return bus.SubscribeAll(r.handle)
}

// Wait blocks until the watched task finished or ctx is done.
func (r *Renderer) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-r.done:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (r *Renderer) handle(_ context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventTaskAttached:
		p, err := domain.DecodePayload[domain.TaskAttachedPayload](ev)
		if err != nil {
			return
		}
		r.session = ev.SessionID
		r.describe("task " + p.TaskID)

	case domain.EventLogLine:
		if ev.SessionID != r.session {
			return
		}
		p, err := domain.DecodePayload[domain.LogLinePayload](ev)
		if err != nil {
			return
		}
		if r.bar != nil {
			r.bar.Clear()
		}
		fmt.Fprintln(r.out, p.Line)

	case domain.EventProgressUpdated:
		state, err := domain.DecodePayload[domain.ProgressState](ev)
		if err != nil || r.bar == nil || !state.Visible {
			return
		}
		r.bar.Set(int(state.Percentage * barScale))
		switch state.Status {
		case domain.ProgressSuccess:
			r.describe("done")
			r.bar.Finish()
		case domain.ProgressFailure:
			r.describe("failed")
		}

	case domain.EventTaskFinished:
		if ev.SessionID != r.session {
			return
		}
		p, err := domain.DecodePayload[domain.TaskFinishedPayload](ev)
		if err != nil {
			return
		}
		r.finish(Result{TaskID: p.TaskID, Outcome: p.Outcome, Lines: p.Lines})

	case domain.EventTaskLaunchFailed:
		p, err := domain.DecodePayload[domain.TaskLaunchFailedPayload](ev)
		if err != nil {
			return
		}
		r.finish(Result{Outcome: domain.OutcomeLaunchFailed, Err: p.Error})
	}
}

func (r *Renderer) describe(s string) {
	if r.bar != nil {
		r.bar.Describe(s)
	}
}

func (r *Renderer) finish(res Result) {
	if r.bar != nil {
		r.bar.Exit()
	}
	select {
	case r.done <- res:
	default:
	}
}
