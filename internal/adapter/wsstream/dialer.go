// Package wsstream implements the log channel transport over WebSocket.
package wsstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"buildwatch/internal/domain"
)

// Config holds configuration for the Dialer.
type Config struct {
	BaseURL     string        // server base URL, http(s):// or ws(s)://
	APIPrefix   string        // e.g. /api/v1
	ReadLimit   int64         // max bytes per message (default: 1MiB)
	DialTimeout time.Duration // bounds the handshake only (default: 10s)
	HTTPClient  *http.Client  // optional
}

// Dialer opens task log channels. It implements domain.LogTransport.
type Dialer struct {
	cfg    Config
	logger *slog.Logger
}

var _ domain.LogTransport = (*Dialer)(nil)

// NewDialer creates a Dialer.
func NewDialer(cfg Config, logger *slog.Logger) *Dialer {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 1 << 20
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Dialer{cfg: cfg, logger: logger}
}

// ChannelURL builds the log channel address for taskID. The scheme is wss
// when the base URL is https (or wss) and ws otherwise.
func ChannelURL(baseURL, apiPrefix, taskID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", baseURL, domain.ErrInvalidInput)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("base url %q: unsupported scheme %q: %w", baseURL, u.Scheme, domain.ErrInvalidInput)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host: %w", baseURL, domain.ErrInvalidInput)
	}
	prefix := "/" + strings.Trim(apiPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	u.Path = strings.TrimRight(u.Path, "/") + prefix + "/tasks/logs/" + taskID
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Dial opens the log channel for taskID.
func (d *Dialer) Dial(ctx context.Context, taskID string) (domain.LogConn, error) {
	target, err := ChannelURL(d.cfg.BaseURL, d.cfg.APIPrefix, taskID)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.DialTimeout)
	defer cancel()

	ws, resp, err := websocket.Dial(dialCtx, target, &websocket.DialOptions{HTTPClient: d.cfg.HTTPClient})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	ws.SetReadLimit(d.cfg.ReadLimit)

	d.logger.Debug("log channel opened", "task_id", taskID, "url", target)
	return &conn{ws: ws}, nil
}

type conn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Read returns the next message as text. Only a normal closure is reported
// as io.EOF; a going-away close means the server quit before the task
// finished and is a connection error.
func (c *conn) Read(ctx context.Context) (string, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure:
			return "", io.EOF
		case websocket.StatusGoingAway:
			return "", fmt.Errorf("server went away before the task finished: %w", err)
		}
		return "", err
	}
	return string(data), nil
}

// Close drops the connection without waiting for the close handshake.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.CloseNow()
	})
	return c.closeErr
}
