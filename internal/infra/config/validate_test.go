package config

import (
	"strings"
	"testing"
)

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty base url", func(c *Config) { c.Server.BaseURL = "" }, "server.base_url is required"},
		{"ws scheme", func(c *Config) { c.Server.BaseURL = "ws://h" }, "must use http or https"},
		{"no host", func(c *Config) { c.Server.BaseURL = "http://" }, "has no host"},
		{"prefix slash", func(c *Config) { c.Server.APIPrefix = "api/v1" }, "must start with /"},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }, "server.timeout"},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, "server.rate_limit"},
		{"zero burst", func(c *Config) { c.Server.Burst = 0 }, "server.burst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateRateLimitDisabledAllowsZeroBurst(t *testing.T) {
	cfg := Defaults()
	cfg.Server.RateLimit = 0
	cfg.Server.Burst = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateHistoryEnabledMissingPath(t *testing.T) {
	cfg := Defaults()
	cfg.History.Path = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	assertContains(t, err.Error(), "history.path")

	cfg.History.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled history should not need a path: %v", err)
	}
}

func TestValidateLogServerBadAddr(t *testing.T) {
	cfg := Defaults()
	cfg.LogServer.Addr = "8000"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	assertContains(t, err.Error(), "logserver.addr")
}

func TestValidateTracerOTLPNeedsEndpoint(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Enabled = true
	cfg.Tracer.Exporter = "otlp"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	assertContains(t, err.Error(), "tracer.endpoint")

	cfg.Tracer.Endpoint = "localhost:4318"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTracerUnknownExporter(t *testing.T) {
	cfg := Defaults()
	cfg.Tracer.Enabled = true
	cfg.Tracer.Exporter = "jaeger"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	assertContains(t, err.Error(), "tracer.exporter")
}

func TestValidateMultipleErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.BaseURL = ""
	cfg.Progress.TickInterval = 0
	cfg.Stream.ReadLimit = 0
	cfg.Logger.Level = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) < 4 {
		t.Errorf("expected at least 4 errors, got %d: %v", len(ve.Errors), ve.Errors)
	}
}

func TestValidationErrorFormat(t *testing.T) {
	ve := &ValidationError{}
	ve.Add("first error")
	ve.Add("second error")

	msg := ve.Error()
	if !strings.HasPrefix(msg, "config validation failed:") {
		t.Errorf("unexpected prefix: %s", msg)
	}
	if !strings.Contains(msg, "first error") || !strings.Contains(msg, "second error") {
		t.Errorf("missing error details: %s", msg)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
