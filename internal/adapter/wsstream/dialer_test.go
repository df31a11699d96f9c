package wsstream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"buildwatch/internal/domain"
)

func TestChannelURL(t *testing.T) {
	tests := []struct {
		name, base, prefix, task, want string
	}{
		{"http maps to ws", "http://localhost:8000", "/api/v1", "abc", "ws://localhost:8000/api/v1/tasks/logs/abc"},
		{"https maps to wss", "https://builds.example.com/", "api/v1/", "abc", "wss://builds.example.com/api/v1/tasks/logs/abc"},
		{"base path kept", "https://example.com/base", "/api/v1", "abc", "wss://example.com/base/api/v1/tasks/logs/abc"},
		{"ws kept", "ws://h:1", "", "abc", "ws://h:1/tasks/logs/abc"},
		{"wss kept", "wss://h", "/api/v1", "abc", "wss://h/api/v1/tasks/logs/abc"},
		{"task id escaped", "http://h", "/api/v1", "a b", "ws://h/api/v1/tasks/logs/a%20b"},
		{"query dropped", "http://h?x=1", "/api/v1", "t", "ws://h/api/v1/tasks/logs/t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChannelURL(tt.base, tt.prefix, tt.task)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelURLRejects(t *testing.T) {
	for _, base := range []string{"ftp://h", "://bad", "http://", "localhost:8000"} {
		_, err := ChannelURL(base, "/api/v1", "t")
		assert.ErrorIs(t, err, domain.ErrInvalidInput, base)
	}
}

// startChannel serves one log channel whose behaviour is given by serve.
func startChannel(t *testing.T, serve func(ctx context.Context, ws *websocket.Conn)) *Dialer {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/tasks/logs/{id}", func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		serve(r.Context(), ws)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewDialer(Config{BaseURL: srv.URL, APIPrefix: "/api/v1", DialTimeout: 3 * time.Second}, slog.Default())
}

func TestDialReadsLinesUntilNormalClose(t *testing.T) {
	d := startChannel(t, func(ctx context.Context, ws *websocket.Conn) {
		for _, line := range []string{"step 1/3", "step 2/3", "done"} {
			if err := ws.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
				return
			}
		}
		ws.Close(websocket.StatusNormalClosure, "")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, "task-1")
	require.NoError(t, err)
	defer conn.Close()

	var got []string
	for {
		line, err := conn.Read(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Equal(t, []string{"step 1/3", "step 2/3", "done"}, got)
}

func TestGoingAwayIsConnectionError(t *testing.T) {
	d := startChannel(t, func(_ context.Context, ws *websocket.Conn) {
		ws.Close(websocket.StatusGoingAway, "server shutting down")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, "task-1")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "server went away")
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestAbnormalCloseIsError(t *testing.T) {
	d := startChannel(t, func(_ context.Context, ws *websocket.Conn) {
		ws.Close(websocket.StatusInternalError, "boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, "task-1")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Read(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Equal(t, websocket.StatusInternalError, websocket.CloseStatus(err))
}

func TestDialUnknownPathFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	d := NewDialer(Config{BaseURL: srv.URL, APIPrefix: "/api/v1"}, slog.Default())

	_, err := d.Dial(context.Background(), "task-1")
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	d := startChannel(t, func(ctx context.Context, ws *websocket.Conn) {
		ws.Read(ctx)
	})

	conn, err := d.Dial(context.Background(), "task-1")
	require.NoError(t, err)
	conn.Close()
	conn.Close()

	_, err = conn.Read(context.Background())
	assert.Error(t, err)
}
