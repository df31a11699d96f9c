package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"buildwatch/internal/adapter/api"
	"buildwatch/internal/adapter/history"
	"buildwatch/internal/adapter/wsstream"
	"buildwatch/internal/infra/config"
	"buildwatch/internal/infra/logger"
	"buildwatch/internal/infra/tracer"
	"buildwatch/internal/usecase/eventbus"
	"buildwatch/internal/usecase/monitor"
	"buildwatch/internal/usecase/progress"
)

// options are the global flags.
type options struct {
	ConfigPath string
	Plain      bool
}

// app carries the command streams and what setup built.
type app struct {
	opts   options
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg     *config.Config
	log     *slog.Logger
	cleanup []func()
}

func (a *app) configPath() string {
	if a.opts.ConfigPath != "" {
		return a.opts.ConfigPath
	}
	return config.DefaultPath()
}

// setup loads config and starts the logger and tracer. With terminalUI set,
// console log output is discarded.
func (a *app) setup(ctx context.Context, terminalUI bool) error {
	cfg, err := config.Load(a.configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	logCfg := cfg.Logger
	if terminalUI {
		logCfg = logger.ForTerminalUI(logCfg)
	}
	log, logCloser, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.onClose(func() { logCloser() })

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer, tracer.WithVersion(Version))
	if err != nil {
		return err
	}
	a.onClose(func() { tracerShutdown(context.Background()) })
	return nil
}

// onClose registers fn to run on close, in reverse order.
func (a *app) onClose(fn func()) {
	a.cleanup = append(a.cleanup, fn)
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func (a *app) client() *api.Client {
	return api.NewClient(a.cfg.Server, nil, a.log)
}

func (a *app) openHistory() (*history.SQLiteRunStore, error) {
	store, err := history.NewSQLiteRunStore(a.cfg.History.Path, a.log)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	a.onClose(func() { store.Close() })
	return store, nil
}

// watcher is the wiring behind run and attach.
type watcher struct {
	bus     *eventbus.Bus
	monitor *monitor.Monitor
}

// newWatcher wires the bus, the monitor and, when enabled, the history
// recorder. The bus is closed before the history store so queued events are
// recorded.
func (a *app) newWatcher() (*watcher, error) {
	var recorder *monitor.Recorder
	if a.cfg.History.Enabled {
		store, err := a.openHistory()
		if err != nil {
			return nil, err
		}
		recorder = monitor.NewRecorder(store, a.log)
	}

	bus := eventbus.New(a.log)
	a.onClose(bus.Close)
	if recorder != nil {
		recorder.Subscribe(bus)
	}

	dialer := wsstream.NewDialer(wsstream.Config{
		BaseURL:     a.cfg.Server.BaseURL,
		APIPrefix:   a.cfg.Server.APIPrefix,
		ReadLimit:   a.cfg.Stream.ReadLimit,
		DialTimeout: a.cfg.Stream.DialTimeout,
	}, a.log)

	mon := monitor.New(monitor.Config{
		Sentinel: a.cfg.Stream.Sentinel,
		Progress: progress.Config{TickInterval: a.cfg.Progress.TickInterval},
	}, a.client(), dialer, bus, a.log)
	a.onClose(mon.Stop)

	return &watcher{bus: bus, monitor: mon}, nil
}
