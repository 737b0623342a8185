package config

import (
	"time"

	"github.com/obswire/bodytap/internal/capture"
)

// ApplyDefaults fills zero-valued fields with the documented defaults.
// It is called after YAML parsing and before validation.
func ApplyDefaults(cfg *Config) {
	// ── Capture ──
	// request_body and response_body default to false (zero value).
	if cfg.Capture.MaxBodySize == 0 {
		cfg.Capture.MaxBodySize = capture.DefaultMaxBodySize
	}

	// ── Client ──
	if cfg.Client.Timeout.Duration == 0 {
		cfg.Client.Timeout.Duration = 30 * time.Second
	}
	if cfg.Client.ResponseHeaderTimeout.Duration == 0 {
		cfg.Client.ResponseHeaderTimeout.Duration = 30 * time.Second
	}
	if cfg.Client.MaxIdleConns == 0 {
		cfg.Client.MaxIdleConns = 100
	}
	if cfg.Client.MaxIdleConnsPerHost == 0 {
		cfg.Client.MaxIdleConnsPerHost = 10
	}

	// ── Logging ──
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// ── Metrics ──
	// metrics.enabled defaults to false (zero value)
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9464"
	}

	// ── Reload ──
	// reload.enabled and reload.watch_file default to false (zero value);
	// profiles turn them on explicitly.
	if cfg.Reload.Debounce.Duration == 0 {
		cfg.Reload.Debounce.Duration = 2 * time.Second
	}
}
