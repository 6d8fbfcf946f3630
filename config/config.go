package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/modaops/retailfetch/observe"
)

// ServiceName identifies this client in telemetry.
const ServiceName = "retailfetch"

// ErrMissingBaseURL indicates no backend base URL was configured.
var ErrMissingBaseURL = errors.New("config: base URL is required")

// Config is the full client configuration.
type Config struct {
	// BaseURL is the dashboard backend root, e.g. "https://api.example.com".
	BaseURL string `env:"RETAILFETCH_BASE_URL" yaml:"base_url"`

	// Timeout bounds each request.
	Timeout time.Duration `env:"RETAILFETCH_TIMEOUT" envDefault:"30s" yaml:"timeout"`

	// AuthToken is an optional bearer token. Supports strict ${VAR}
	// expansion so config files can reference the environment without
	// embedding the secret.
	AuthToken string `env:"RETAILFETCH_AUTH_TOKEN" yaml:"auth_token"`

	// UploadEndpoint is the upload path on the backend.
	UploadEndpoint string `env:"RETAILFETCH_UPLOAD_ENDPOINT" envDefault:"upload" yaml:"upload_endpoint"`

	// LogLevel is debug|info|warn|error.
	LogLevel string `env:"RETAILFETCH_LOG_LEVEL" envDefault:"info" yaml:"log_level"`

	// TracingExporter is otlp|stdout|none; empty disables tracing.
	TracingExporter string `env:"RETAILFETCH_TRACING_EXPORTER" yaml:"tracing_exporter"`

	// SamplePct is the trace sampling ratio in [0.0, 1.0].
	SamplePct float64 `env:"RETAILFETCH_TRACE_SAMPLE_PCT" envDefault:"1.0" yaml:"trace_sample_pct"`

	// MetricsExporter is otlp|prometheus|stdout|none; empty disables metrics.
	MetricsExporter string `env:"RETAILFETCH_METRICS_EXPORTER" yaml:"metrics_exporter"`
}

// FromEnv loads configuration from RETAILFETCH_* environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, cfg.resolve()
}

// Load reads a YAML config file and overlays its non-empty values on top of
// the environment-derived configuration. The file wins for fields it sets.
func Load(path string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := file.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.resolve()
}

// fileConfig is the YAML shape. Durations are strings ("30s") so files stay
// readable, and numeric fields are pointers so an explicit zero in the file
// is distinguishable from the field being absent.
type fileConfig struct {
	BaseURL         string   `yaml:"base_url"`
	Timeout         string   `yaml:"timeout"`
	AuthToken       string   `yaml:"auth_token"`
	UploadEndpoint  string   `yaml:"upload_endpoint"`
	LogLevel        string   `yaml:"log_level"`
	TracingExporter string   `yaml:"tracing_exporter"`
	SamplePct       *float64 `yaml:"trace_sample_pct"`
	MetricsExporter string   `yaml:"metrics_exporter"`
}

// apply overlays the fields the file sets. The file wins over the environment.
func (f fileConfig) apply(c *Config) error {
	if f.BaseURL != "" {
		c.BaseURL = f.BaseURL
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		c.Timeout = d
	}
	if f.AuthToken != "" {
		c.AuthToken = f.AuthToken
	}
	if f.UploadEndpoint != "" {
		c.UploadEndpoint = f.UploadEndpoint
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.TracingExporter != "" {
		c.TracingExporter = f.TracingExporter
	}
	if f.SamplePct != nil {
		c.SamplePct = *f.SamplePct
	}
	if f.MetricsExporter != "" {
		c.MetricsExporter = f.MetricsExporter
	}
	return nil
}

// resolve expands the auth token and normalizes defaults.
func (c *Config) resolve() error {
	token, err := ExpandStrict(c.AuthToken)
	if err != nil {
		return fmt.Errorf("config: auth token: %w", err)
	}
	c.AuthToken = token
	return nil
}

// Validate checks that the configuration can drive a client.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	return c.ObserveConfig().Validate()
}

// ObserveConfig derives the telemetry configuration.
func (c Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName:     ServiceName,
		TracingExporter: c.TracingExporter,
		SamplePct:       c.SamplePct,
		MetricsExporter: c.MetricsExporter,
		LogLevel:        c.LogLevel,
	}
}
