// Package integration holds end-to-end tests that wire the real adapters
// together. Run with -tags integration.
package integration

import (
	"context"
	"os"
	"testing"
	"time"
)

// Config holds integration test configuration from environment
type Config struct {
	BaseURL     string // live build server, e.g. http://localhost:8000
	ProjectID   string // project to build on the live server
	Tag         string
	TestTimeout time.Duration
	SkipSlow    bool
}

// LoadConfig loads integration test configuration from environment
func LoadConfig() *Config {
	tag := os.Getenv("BUILDWATCH_IT_TAG")
	if tag == "" {
		tag = "latest"
	}
	return &Config{
		BaseURL:     os.Getenv("BUILDWATCH_IT_BASE_URL"),
		ProjectID:   os.Getenv("BUILDWATCH_IT_PROJECT"),
		Tag:         tag,
		TestTimeout: 10 * time.Minute,
		SkipSlow:    os.Getenv("SKIP_SLOW_TESTS") == "1",
	}
}

// SkipIfNoServer skips the test unless a live build server is configured.
func SkipIfNoServer(t *testing.T, cfg *Config) {
	t.Helper()
	if cfg.BaseURL == "" || cfg.ProjectID == "" {
		t.Skip("Skipping live server test: BUILDWATCH_IT_BASE_URL and BUILDWATCH_IT_PROJECT not set")
	}
}

// SkipIfShort skips integration tests in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
