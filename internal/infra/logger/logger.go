// Package logger builds the process-wide slog.Logger from config.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"buildwatch/internal/infra/config"
)

// Closer releases the log destination.
type Closer func() error

// New returns a logger writing to cfg.Output. Output is stderr, stdout,
// discard or a file path that is appended to.
func New(cfg config.LoggerConfig) (*slog.Logger, Closer, error) {
	w, closeFn, err := destination(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %q: %w", cfg.Output, err)
	}
	opts := &slog.HandlerOptions{Level: level(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closeFn, nil
}

// ForTerminalUI keeps log lines off a full-screen terminal program. Console
// outputs are discarded; a file output is kept.
func ForTerminalUI(cfg config.LoggerConfig) config.LoggerConfig {
	if isConsole(cfg.Output) {
		cfg.Output = "discard"
	}
	return cfg
}

func isConsole(output string) bool {
	switch strings.ToLower(output) {
	case "", "stderr", "stdout":
		return true
	}
	return false
}

// level maps a config string onto a slog level. Unknown values log at info.
func level(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func destination(output string) (io.Writer, Closer, error) {
	nop := func() error { return nil }
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr, nop, nil
	case "stdout":
		return os.Stdout, nop, nil
	case "discard":
		return io.Discard, nop, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
