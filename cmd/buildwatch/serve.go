package main

import (
	"context"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"buildwatch/internal/adapter/logserver"
)

func newServeLogsCommand(a *app) *cobra.Command {
	var addr, logDir string
	cmd := &cobra.Command{
		Use:   "serve-logs",
		Short: "Serve task log files as live log channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx, false); err != nil {
				return err
			}
			defer a.close()

			cfg := a.cfg.LogServer
			if addr != "" {
				cfg.Addr = addr
			}
			if logDir != "" {
				cfg.LogDir = logDir
			}
			srv := logserver.NewServer(cfg, a.log)

			var g run.Group

			// Log server.
			{
				srvCtx, srvCancel := context.WithCancel(context.Background())
				defer srvCancel()

				g.Add(
					func() error {
						return srv.Start(srvCtx)
					},
					func(_ error) {
						srvCancel()
						stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
						defer cancel()
						if err := srv.Stop(stopCtx); err != nil {
							a.log.Warn("log server stop", "error", err)
						}
					},
				)
			}

			// Termination signal.
			{
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				g.Add(
					func() error {
						<-ctx.Done()
						a.log.Info("termination signal received")
						return nil
					},
					func(_ error) {
						cancel()
					},
				)
			}

			return g.Run()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "Directory holding {task_id}.log files (default from config)")
	return cmd
}
