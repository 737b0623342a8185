// Package config handles YAML configuration parsing, defaults, and
// validation for the bodytap CLI and capture transport.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for bodytap.
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Reload  ReloadConfig  `yaml:"reload"`
}

// CaptureConfig controls what the recorder captures. Both directions
// default to off; capture is opt-in because it buffers one-shot bodies
// into memory.
type CaptureConfig struct {
	RequestBody  bool `yaml:"request_body"`
	ResponseBody bool `yaml:"response_body"`
	MaxBodySize  int  `yaml:"max_body_size"`
}

// ClientConfig tunes the underlying HTTP transport used by the CLI client.
type ClientConfig struct {
	Timeout               Duration `yaml:"timeout"`
	ResponseHeaderTimeout Duration `yaml:"response_header_timeout"`
	MaxIdleConns          int      `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost   int      `yaml:"max_idle_conns_per_host"`
}

// LoggingConfig defines log output level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// MetricsConfig controls the Prometheus exposition listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // host:port
}

// ReloadConfig controls config hot-reload behavior (SIGHUP and file
// watching).
type ReloadConfig struct {
	Enabled   bool     `yaml:"enabled"`
	WatchFile bool     `yaml:"watch_file"`
	Debounce  Duration `yaml:"debounce"` // default 2s
}

// Duration is a time.Duration that supports YAML string parsing (e.g.,
// "30s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Load reads, parses, applies defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
