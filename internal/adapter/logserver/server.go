// Package logserver serves task log files over the log channel protocol:
// one WebSocket per task, one text message per line, closed after the
// completion sentinel.
package logserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"buildwatch/internal/infra/config"
	"buildwatch/internal/infra/middleware"
)

// Server streams task logs from a directory of {task_id}.log files.
type Server struct {
	cfg    config.LogServerConfig
	logger *slog.Logger

	mu        sync.Mutex
	httpSrv   *http.Server
	boundAddr string
	conns     map[*websocket.Conn]struct{}
}

// NewServer creates a log server.
func NewServer(cfg config.LogServerConfig, logger *slog.Logger) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.Sentinel == "" {
		cfg.Sentinel = config.DefaultSentinel
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	prefix := "/" + strings.Trim(s.cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	limit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerMin: s.cfg.StreamsPerMin,
		BurstSize:      s.cfg.StreamBurst,
		TrustedProxies: s.cfg.TrustedProxies,
	})

	mux := http.NewServeMux()
	mux.Handle("GET "+prefix+"/tasks/logs/{task_id}", limit(http.HandlerFunc(s.handleStream)))
	mux.Handle("GET "+prefix+"/tasks/logs/{task_id}/content", middleware.NoStore(http.HandlerFunc(s.handleContent)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return middleware.RequestLog(s.logger)(mux)
}

// Start begins accepting connections. Blocks until ctx is cancelled or Stop
// is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("logserver listen: %w", err)
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.httpSrv = srv
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("log server started", "addr", listener.Addr().String(), "log_dir", s.cfg.LogDir)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			s.Stop(context.Background())
		case <-stopped:
		}
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("logserver serve: %w", err)
	}
	return nil
}

// Stop closes every open stream with going-away and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	closeAll(ctx, conns)
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// closeAll sends going-away to every stream at once. A peer that never
// answers the close handshake is abandoned when ctx ends.
func closeAll(ctx context.Context, conns []*websocket.Conn) {
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close(websocket.StatusGoingAway, "server shutting down")
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		for _, c := range conns {
			c.CloseNow()
		}
	}
}

// BoundAddr returns the address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// logPath resolves the log file of taskID, rejecting ids that would escape
// the log directory.
func (s *Server) logPath(taskID string) (string, bool) {
	if taskID == "" || taskID == "." || taskID == ".." || strings.ContainsAny(taskID, `/\`) {
		return "", false
	}
	return filepath.Join(s.cfg.LogDir, taskID+".log"), true
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	path, ok := s.logPath(r.PathValue("task_id"))
	if !ok {
		s.writeDetail(w, http.StatusBadRequest, "invalid task id")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.writeDetail(w, http.StatusNotFound, "log file not found")
			return
		}
		s.logger.Error("read log file", "path", path, "error", err)
		s.writeDetail(w, http.StatusInternalServerError, "failed to read log file")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("write log content", "path", path, "error", err)
	}
}

func (s *Server) writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"detail": detail}); err != nil {
		s.logger.Debug("write error detail", "status", status, "error", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	path, ok := s.logPath(taskID)
	if !ok {
		s.writeDetail(w, http.StatusBadRequest, "invalid task id")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[ws] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, ws)
		s.mu.Unlock()
	}()

	logger := s.logger.With("task_id", taskID)
	logger.Info("log stream client connected")

	// The client never sends; CloseRead handles control frames and cancels
	// ctx once the client goes away.
	ctx := ws.CloseRead(r.Context())

	status, reason := s.stream(ctx, ws, taskID, path)
	ws.Close(status, reason)
	logger.Info("log stream client disconnected", "status", status.String())
}

// stream sends the log of taskID line by line and returns the close status.
func (s *Server) stream(ctx context.Context, ws *websocket.Conn, taskID, path string) (websocket.StatusCode, string) {
	if !s.waitForFile(ctx, path) {
		if ctx.Err() != nil {
			return websocket.StatusGoingAway, ""
		}
		s.send(ctx, ws, fmt.Sprintf("❌ Error: log file for task %s was not created.", taskID))
		return websocket.StatusInternalError, "log file missing"
	}

	f, err := os.Open(path)
	if err != nil {
		s.send(ctx, ws, fmt.Sprintf("❌ Error reading log: %v", err))
		return websocket.StatusInternalError, "log file unreadable"
	}
	defer f.Close()

	err = s.tail(ctx, f, func(line string) error {
		return s.send(ctx, ws, line)
	})
	switch {
	case err == nil:
		return websocket.StatusNormalClosure, ""
	case ctx.Err() != nil:
		return websocket.StatusGoingAway, ""
	default:
		s.logger.Warn("log stream aborted", "task_id", taskID, "error", err)
		s.send(ctx, ws, fmt.Sprintf("❌ Error reading log: %v", err))
		return websocket.StatusInternalError, "log read failed"
	}
}

func (s *Server) waitForFile(ctx context.Context, path string) bool {
	for i := 0; ; i++ {
		if _, err := os.Stat(path); err == nil {
			return true
		}
		if i >= s.cfg.WaitRetries {
			return false
		}
		if !sleep(ctx, s.cfg.WaitInterval) {
			return false
		}
	}
}

// tail emits each complete line of r, trimmed, until a line containing the
// sentinel. At end of file it polls for more. Partial lines are held back
// until their newline arrives.
func (s *Server) tail(ctx context.Context, r io.Reader, emit func(string) error) error {
	br := bufio.NewReader(r)
	var pending strings.Builder
	for {
		chunk, err := br.ReadString('\n')
		pending.WriteString(chunk)
		switch {
		case err == nil:
			line := pending.String()
			pending.Reset()
			if strings.Contains(line, s.cfg.Sentinel) {
				return nil
			}
			if err := emit(strings.TrimSpace(line)); err != nil {
				return err
			}
		case errors.Is(err, io.EOF):
			if !sleep(ctx, s.cfg.PollInterval) {
				return ctx.Err()
			}
		default:
			return err
		}
	}
}

func (s *Server) send(ctx context.Context, ws *websocket.Conn, line string) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, []byte(line))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
