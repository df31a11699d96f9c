package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateProgress(cfg, ve)
	validateStream(cfg, ve)
	validateHistory(cfg, ve)
	validateLogServer(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	s := cfg.Server
	u, err := url.Parse(s.BaseURL)
	switch {
	case s.BaseURL == "":
		ve.Add("server.base_url is required")
	case err != nil:
		ve.Add("server.base_url %q: %v", s.BaseURL, err)
	case u.Scheme != "http" && u.Scheme != "https":
		ve.Add("server.base_url %q must use http or https", s.BaseURL)
	case u.Host == "":
		ve.Add("server.base_url %q has no host", s.BaseURL)
	}
	if s.APIPrefix != "" && !strings.HasPrefix(s.APIPrefix, "/") {
		ve.Add("server.api_prefix %q must start with /", s.APIPrefix)
	}
	if s.Timeout <= 0 {
		ve.Add("server.timeout must be positive")
	}
	if s.RateLimit < 0 {
		ve.Add("server.rate_limit must not be negative")
	}
	if s.RateLimit > 0 && s.Burst < 1 {
		ve.Add("server.burst must be at least 1 when rate_limit is set")
	}
	if s.Breaker.Timeout < 0 || s.Breaker.Interval < 0 {
		ve.Add("server.breaker durations must not be negative")
	}
}

func validateProgress(cfg *Config, ve *ValidationError) {
	if cfg.Progress.TickInterval <= 0 {
		ve.Add("progress.tick_interval must be positive")
	}
}

func validateStream(cfg *Config, ve *ValidationError) {
	if cfg.Stream.ReadLimit <= 0 {
		ve.Add("stream.read_limit must be positive")
	}
	if cfg.Stream.DialTimeout <= 0 {
		ve.Add("stream.dial_timeout must be positive")
	}
}

func validateHistory(cfg *Config, ve *ValidationError) {
	if cfg.History.Enabled && cfg.History.Path == "" {
		ve.Add("history.path is required when history is enabled")
	}
}

func validateLogServer(cfg *Config, ve *ValidationError) {
	ls := cfg.LogServer
	if ls.Addr == "" {
		ve.Add("logserver.addr is required")
	} else if _, _, err := net.SplitHostPort(ls.Addr); err != nil {
		ve.Add("logserver.addr %q is not host:port: %v", ls.Addr, err)
	}
	if ls.LogDir == "" {
		ve.Add("logserver.log_dir is required")
	}
	if ls.Sentinel == "" {
		ve.Add("logserver.sentinel is required")
	}
	if ls.PollInterval <= 0 {
		ve.Add("logserver.poll_interval must be positive")
	}
	if ls.WaitRetries < 0 || ls.WaitInterval < 0 {
		ve.Add("logserver.wait_retries and wait_interval must not be negative")
	}
	if ls.StreamsPerMin < 0 || ls.StreamBurst < 0 {
		ve.Add("logserver.streams_per_min and stream_burst must not be negative")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q must be debug, info, warn or error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q must be text or json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	case "otlp":
		if cfg.Tracer.Endpoint == "" {
			ve.Add("tracer.endpoint is required for the otlp exporter")
		}
	default:
		ve.Add("tracer.exporter %q must be noop, stdout or otlp", cfg.Tracer.Exporter)
	}
}
