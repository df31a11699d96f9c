package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"buildwatch/internal/adapter/api"
	"buildwatch/internal/adapter/history"
	"buildwatch/internal/domain"
	"buildwatch/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(ctx context.Context, cfg *config.Config) CheckResult
}

const doctorTimeout = 5 * time.Second

func newDoctorCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, server reachability and local storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath := a.configPath()
			// Some checks work without a config.
			cfg, cfgErr := config.Load(cfgPath)

			checks := []Check{
				{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
				{Name: "Build server", Fn: checkServer},
				{Name: "History store", Fn: checkHistory},
				{Name: "Log directory", Fn: checkLogDir},
				{Name: "Trace exporter", Fn: checkTracer},
			}
			return runDoctor(cmd.Context(), a.out, cfg, checks)
		},
	}
}

// runDoctor executes checks and reports results to w.
func runDoctor(ctx context.Context, w io.Writer, cfg *config.Config, checks []Check) error {
	fmt.Fprintln(w, "buildwatch doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(ctx, cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file parsed. A missing file is
// only a warning since defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(context.Context, *config.Config) CheckResult {
	return func(context.Context, *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     fmt.Sprintf("Check the YAML syntax and values in %s", cfgPath),
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkServer lists projects to prove the REST API answers.
func checkServer(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	client := api.NewClient(cfg.Server, &http.Client{Timeout: doctorTimeout}, slog.New(slog.DiscardHandler))
	projects, err := client.Projects().List(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s unreachable: %v", cfg.Server.BaseURL, err),
			Fix:     "Start the build server or fix server.base_url",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s answered with %d project(s)", cfg.Server.BaseURL, len(projects)),
	}
}

// checkHistory opens the run history database, applying migrations.
func checkHistory(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	if !cfg.History.Enabled {
		return CheckResult{Status: StatusPass, Message: "run history disabled"}
	}

	store, err := history.NewSQLiteRunStore(cfg.History.Path, slog.New(slog.DiscardHandler))
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot open %s: %v", cfg.History.Path, err),
			Fix:     fmt.Sprintf("Check permissions of %s or set history.path", filepath.Dir(cfg.History.Path)),
		}
	}
	defer store.Close()

	runs, err := store.List(ctx, domain.RunFilter{Limit: history.DefaultListLimit})
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("cannot read runs: %v", err)}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s ready (%d recent run(s))", cfg.History.Path, len(runs)),
	}
}

// checkLogDir verifies the serve-logs directory. Clients that never serve
// logs can ignore the warning.
func checkLogDir(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	absDir, _ := filepath.Abs(cfg.LogServer.LogDir)

	info, err := os.Stat(absDir)
	if os.IsNotExist(err) {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("log directory %s does not exist (only needed for serve-logs)", absDir),
			Fix:     fmt.Sprintf("Create the directory: mkdir -p %s", absDir),
		}
	}
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("cannot stat log directory: %v", err)}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("%s exists but is not a directory", absDir)}
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("log directory %s is not readable: %v", absDir, err),
			Fix:     fmt.Sprintf("Fix permissions: chmod 755 %s", absDir),
		}
	}
	var logs int
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".log") {
			logs++
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("log directory %s holds %d task log(s)", absDir, logs),
	}
}

// checkTracer dials the OTLP endpoint when that exporter is selected.
func checkTracer(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
	}
	if !cfg.Tracer.Enabled {
		return CheckResult{Status: StatusPass, Message: "tracing disabled"}
	}
	if cfg.Tracer.Exporter != "otlp" {
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("exporter %s needs no endpoint", cfg.Tracer.Exporter)}
	}

	host := endpointHost(cfg.Tracer.Endpoint)
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("OTLP endpoint %s unreachable: %v", host, err),
			Fix:     "Start the collector or fix tracer.endpoint; spans are dropped meanwhile",
		}
	}
	conn.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("OTLP endpoint %s reachable", host)}
}

// endpointHost accepts host:port or a URL and returns host:port.
func endpointHost(endpoint string) string {
	if endpoint == "" {
		return "localhost:4318"
	}
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		if u.Port() == "" {
			if u.Scheme == "https" {
				return u.Host + ":443"
			}
			return u.Host + ":80"
		}
		return u.Host
	}
	return endpoint
}
