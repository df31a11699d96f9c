package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"buildwatch/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Progress  ProgressConfig  `yaml:"progress"`
	Stream    StreamConfig    `yaml:"stream"`
	History   HistoryConfig   `yaml:"history"`
	LogServer LogServerConfig `yaml:"logserver"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// ServerConfig describes the build server the client talks to.
type ServerConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIPrefix string        `yaml:"api_prefix"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 disables
	Burst     int           `yaml:"burst"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the REST circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `yaml:"interval"`
}

// ProgressConfig holds simulated progress settings.
type ProgressConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// StreamConfig holds log channel client settings.
type StreamConfig struct {
	Sentinel    string        `yaml:"sentinel"`
	ReadLimit   int64         `yaml:"read_limit"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// HistoryConfig holds local run history settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogServerConfig holds settings for the serve-logs command.
type LogServerConfig struct {
	Addr         string        `yaml:"addr"`
	APIPrefix    string        `yaml:"api_prefix"`
	LogDir       string        `yaml:"log_dir"`
	Sentinel     string        `yaml:"sentinel"`
	PollInterval time.Duration `yaml:"poll_interval"`
	WaitRetries  int           `yaml:"wait_retries"`
	WaitInterval time.Duration `yaml:"wait_interval"`

	// StreamsPerMin limits new streams per client IP; 0 disables.
	StreamsPerMin  int      `yaml:"streams_per_min"`
	StreamBurst    int      `yaml:"stream_burst"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultSentinel marks the end of a task's log output.
const DefaultSentinel = "---TASK-COMPLETE---"

// defaultDataDir returns the persistent data directory under $HOME/.buildwatch.
// Falls back to "./.buildwatch" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.buildwatch"
	}
	return filepath.Join(home, ".buildwatch")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:   "http://localhost:8000",
			APIPrefix: "/api/v1",
			Timeout:   15 * time.Second,
			RateLimit: 10,
			Burst:     5,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Progress: ProgressConfig{
			TickInterval: 200 * time.Millisecond,
		},
		Stream: StreamConfig{
			Sentinel:    DefaultSentinel,
			ReadLimit:   1 << 20,
			DialTimeout: 10 * time.Second,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(defaultDataDir(), "history.db"),
		},
		LogServer: LogServerConfig{
			Addr:          ":8000",
			APIPrefix:     "/api/v1",
			LogDir:        "./data/logs",
			Sentinel:      DefaultSentinel,
			PollInterval:  200 * time.Millisecond,
			WaitRetries:   10,
			WaitInterval:  500 * time.Millisecond,
			StreamsPerMin: 120,
			StreamBurst:   20,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config from path over Defaults, applies env overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w: %w", domain.ErrConfigLoad, err)
	}

	if err := validatePermissions(path); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w: %w", domain.ErrConfigLoad, err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps BUILDWATCH_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BUILDWATCH_SERVER_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("BUILDWATCH_SERVER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Server.Timeout = d
		}
	}
	if v := os.Getenv("BUILDWATCH_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("BUILDWATCH_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("BUILDWATCH_LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv("BUILDWATCH_TRACER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracer.Enabled = b
		}
	}
	if v := os.Getenv("BUILDWATCH_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("BUILDWATCH_TRACER_ENDPOINT"); v != "" {
		cfg.Tracer.Endpoint = v
	}
	if v := os.Getenv("BUILDWATCH_HISTORY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.History.Enabled = b
		}
	}
	if v := os.Getenv("BUILDWATCH_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("BUILDWATCH_LOGSERVER_LOG_DIR"); v != "" {
		cfg.LogServer.LogDir = v
	}
}

func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644): %w", path, mode, domain.ErrConfigLoad)
	}
	return nil
}
