package logstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildwatch/internal/domain"
)

var errConnClosed = errors.New("use of closed connection")

type readEvent struct {
	line string
	err  error
}

type fakeConn struct {
	events    chan readEvent
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan readEvent), closed: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) (string, error) {
	select {
	case ev := <-c.events:
		return ev.line, ev.err
	case <-c.closed:
		return "", errConnClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) push(t *testing.T, ev readEvent) {
	t.Helper()
	select {
	case c.events <- ev:
	case <-time.After(time.Second):
		t.Fatal("event was not read")
	}
}

func (c *fakeConn) send(t *testing.T, line string) { c.push(t, readEvent{line: line}) }
func (c *fakeConn) eof(t *testing.T)               { c.push(t, readEvent{err: io.EOF}) }
func (c *fakeConn) fail(t *testing.T, err error)   { c.push(t, readEvent{err: err}) }

type dialRequest struct {
	taskID string
	conn   *fakeConn
	result chan error
}

func (d dialRequest) accept()          { d.result <- nil }
func (d dialRequest) reject(err error) { d.result <- err }

// fakeTransport hands every dial to the test, which decides when and how it
// completes.
type fakeTransport struct {
	dials chan dialRequest
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{dials: make(chan dialRequest, 8)}
}

func (f *fakeTransport) Dial(ctx context.Context, taskID string) (domain.LogConn, error) {
	req := dialRequest{taskID: taskID, conn: newFakeConn(), result: make(chan error, 1)}
	f.dials <- req
	select {
	case err := <-req.result:
		if err != nil {
			return nil, err
		}
		return req.conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) next(t *testing.T) dialRequest {
	t.Helper()
	select {
	case d := <-f.dials:
		return d
	case <-time.After(time.Second):
		t.Fatal("no dial attempt")
		return dialRequest{}
	}
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) observe(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Update, len(r.updates))
	copy(out, r.updates)
	return out
}

func newTestConsumer(t *testing.T) (*Consumer, *fakeTransport, *recorder) {
	t.Helper()
	tr := newFakeTransport()
	rec := &recorder{}
	c := NewConsumer(tr, rec.observe, slog.Default())
	t.Cleanup(c.Stop)
	return c, tr, rec
}

func waitState(t *testing.T, s *Session, want domain.ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want },
		time.Second, 2*time.Millisecond, "state %s, want %s", s.State(), want)
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session goroutine did not exit")
	}
}

func TestStartIsConnectingWithEmptyBuffer(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	s, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, domain.ConnConnecting, s.State())
	assert.True(t, s.Running())
	assert.Empty(t, s.Lines())
	assert.Equal(t, "t1", s.TaskID())
	assert.NotEmpty(t, s.ID())
	assert.Same(t, s, c.Current())

	d := tr.next(t)
	assert.Equal(t, "t1", d.taskID)
}

func TestCleanSessionLifecycle(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	s, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)

	d := tr.next(t)
	d.accept()
	waitState(t, s, domain.ConnOpen)

	d.conn.send(t, "line1")
	d.conn.send(t, "line2")
	d.conn.eof(t)
	waitDone(t, s)

	assert.Equal(t, []string{NoticeConnected, "line1", "line2", NoticeClosed}, s.Lines())
	assert.Equal(t, domain.ConnClosedClean, s.State())
	assert.False(t, s.Running())
	assert.NoError(t, s.Err())
	assert.True(t, d.conn.isClosed())
}

func TestPayloadsAreVerbatim(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	s, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)
	d := tr.next(t)
	d.accept()

	raw := []string{"  indented\t", "<span class=\"err\">x</span>", "", "---TASK-COMPLETE---"}
	for _, line := range raw {
		d.conn.send(t, line)
	}
	d.conn.eof(t)
	waitDone(t, s)

	assert.Equal(t, raw, s.Lines()[1:len(raw)+1])
}

func TestErrorThenCloseProducesOneNotice(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	s, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)
	d := tr.next(t)
	d.accept()
	d.conn.send(t, "line1")

	cause := errors.New("connection reset by peer")
	d.conn.fail(t, cause)
	waitDone(t, s)

	assert.Equal(t, []string{NoticeConnected, "line1", ErrorNotice(cause)}, s.Lines())
	assert.Equal(t, domain.ConnClosedError, s.State())
	assert.False(t, s.Running())

	var connErr *domain.ConnectionError
	require.ErrorAs(t, s.Err(), &connErr)
	assert.Equal(t, "t1", connErr.TaskID)
	assert.ErrorIs(t, s.Err(), domain.ErrConnection)
	assert.ErrorIs(t, s.Err(), cause)
}

func TestDialFailureIsConnectionError(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	s, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)

	cause := errors.New("dial tcp: connection refused")
	tr.next(t).reject(cause)
	waitDone(t, s)

	assert.Equal(t, []string{ErrorNotice(cause)}, s.Lines())
	assert.Equal(t, domain.ConnClosedError, s.State())
	assert.ErrorIs(t, s.Err(), domain.ErrConnection)
}

func TestSupersedeOpenSessionIsSilent(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	first, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)
	d1 := tr.next(t)
	d1.accept()
	d1.conn.send(t, "old line")
	require.Eventually(t, func() bool { return len(first.Lines()) == 2 }, time.Second, 2*time.Millisecond)

	second, err := c.Start(context.Background(), "t2")
	require.NoError(t, err)

	assert.True(t, d1.conn.isClosed(), "old connection must be force-closed")
	assert.Equal(t, domain.ConnSuperseded, first.State())
	waitDone(t, first)

	assert.Equal(t, []string{NoticeConnected, "old line"}, first.Lines())
	assert.Empty(t, second.Lines())
	assert.Equal(t, domain.ConnConnecting, second.State())
	assert.Same(t, second, c.Current())

	d2 := tr.next(t)
	assert.Equal(t, "t2", d2.taskID)
	d2.accept()
	waitState(t, second, domain.ConnOpen)
	assert.Equal(t, []string{NoticeConnected}, second.Lines())
	assert.Equal(t, []string{NoticeConnected, "old line"}, first.Lines())
}

func TestSupersedeWhileConnecting(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	first, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)
	tr.next(t)

	second, err := c.Start(context.Background(), "t2")
	require.NoError(t, err)
	waitDone(t, first)

	assert.Equal(t, domain.ConnSuperseded, first.State())
	assert.Empty(t, first.Lines())
	assert.NoError(t, first.Err())
	assert.Equal(t, domain.ConnConnecting, second.State())
}

func TestRestartSameTaskAfterTerminal(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	first, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)
	tr.next(t).reject(errors.New("boom"))
	waitDone(t, first)

	second, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, domain.ConnClosedError, first.State(), "terminal states are absorbing")
	assert.Empty(t, second.Lines())
	assert.True(t, second.Running())
	tr.next(t).accept()
	waitState(t, second, domain.ConnOpen)
}

func TestStartRejectsEmptyTaskID(t *testing.T) {
	c, _, _ := newTestConsumer(t)

	_, err := c.Start(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, c.Current())
}

func TestStopAbandonsSilently(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	s, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)
	d := tr.next(t)
	d.accept()
	waitState(t, s, domain.ConnOpen)

	c.Stop()
	waitDone(t, s)
	assert.Equal(t, domain.ConnSuperseded, s.State())
	assert.Equal(t, []string{NoticeConnected}, s.Lines())
}

func TestObserverSeesOrderedUpdates(t *testing.T) {
	c, tr, rec := newTestConsumer(t)

	s, err := c.Start(context.Background(), "t1")
	require.NoError(t, err)
	d := tr.next(t)
	d.accept()
	d.conn.send(t, "line1")
	d.conn.eof(t)
	waitDone(t, s)

	type step struct {
		kind  UpdateKind
		line  string
		state domain.ConnectionState
	}
	var got []step
	for _, u := range rec.snapshot() {
		assert.Equal(t, s.ID(), u.SessionID)
		assert.Equal(t, "t1", u.TaskID)
		if u.Kind == UpdateLine {
			got = append(got, step{kind: u.Kind, line: u.Line})
		} else {
			got = append(got, step{kind: u.Kind, state: u.State})
		}
	}
	assert.Equal(t, []step{
		{kind: UpdateState, state: domain.ConnConnecting},
		{kind: UpdateLine, line: NoticeConnected},
		{kind: UpdateState, state: domain.ConnOpen},
		{kind: UpdateLine, line: "line1"},
		{kind: UpdateLine, line: NoticeClosed},
		{kind: UpdateState, state: domain.ConnClosedClean},
	}, got)
}

func TestCancelledContextEndsSession(t *testing.T) {
	c, tr, _ := newTestConsumer(t)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := c.Start(ctx, "t1")
	require.NoError(t, err)
	d := tr.next(t)
	d.accept()
	waitState(t, s, domain.ConnOpen)

	cancel()
	waitDone(t, s)
	assert.Equal(t, domain.ConnClosedError, s.State())
	assert.ErrorIs(t, s.Err(), context.Canceled)
}
