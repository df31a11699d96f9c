package plain

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildwatch/internal/domain"
	"buildwatch/internal/usecase/eventbus"
)

func TestRendererPrintsCurrentSession(t *testing.T) {
	bus := eventbus.New(slog.Default())
	var out, bar bytes.Buffer
	r := New(&out, &bar)
	r.Subscribe(bus)

	ctx := context.Background()
	bus.Publish(ctx, domain.NewEvent(domain.EventTaskAttached, "s1", domain.TaskAttachedPayload{TaskID: "t1"}))
	bus.Publish(ctx, domain.NewEvent(domain.EventProgressUpdated, "", domain.ProgressState{Percentage: 12.3, Visible: true, Status: domain.ProgressNone}))
	bus.Publish(ctx, domain.NewEvent(domain.EventLogLine, "s1", domain.LogLinePayload{TaskID: "t1", Line: "Step 1/2"}))
	bus.Publish(ctx, domain.NewEvent(domain.EventLogLine, "s0", domain.LogLinePayload{TaskID: "t0", Line: "stale"}))
	bus.Publish(ctx, domain.NewEvent(domain.EventLogLine, "s1", domain.LogLinePayload{TaskID: "t1", Line: "Step 2/2"}))
	bus.Publish(ctx, domain.NewEvent(domain.EventProgressUpdated, "", domain.ProgressState{Percentage: 100, Visible: true, Status: domain.ProgressSuccess}))
	bus.Publish(ctx, domain.NewEvent(domain.EventTaskFinished, "s1", domain.TaskFinishedPayload{TaskID: "t1", Outcome: domain.OutcomeSuccess, Lines: 2}))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := r.Wait(waitCtx)
	require.NoError(t, err)
	bus.Close()

	assert.True(t, res.Success())
	assert.Equal(t, "t1", res.TaskID)
	assert.Equal(t, 2, res.Lines)
	assert.Equal(t, "Step 1/2\nStep 2/2\n", out.String())
	assert.NotEmpty(t, bar.String())
}

func TestRendererLaunchFailure(t *testing.T) {
	bus := eventbus.New(slog.Default())
	defer bus.Close()
	var out bytes.Buffer
	r := New(&out, nil)
	r.Subscribe(bus)

	bus.Publish(context.Background(), domain.NewEvent(domain.EventTaskLaunchFailed, "", domain.TaskLaunchFailedPayload{ProjectID: "p1", Error: "boom"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := r.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, domain.OutcomeLaunchFailed, res.Outcome)
	assert.Equal(t, "boom", res.Err)
	assert.Empty(t, out.String())
}

func TestWaitHonoursContext(t *testing.T) {
	r := New(&bytes.Buffer{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
