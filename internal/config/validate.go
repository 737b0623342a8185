package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the configuration for errors. It collects ALL errors
// rather than stopping at the first one, returning them as a joined
// message.
func Validate(cfg *Config) error {
	var errs []string

	// ── Capture ──
	if cfg.Capture.MaxBodySize <= 0 {
		errs = append(errs, fmt.Sprintf("capture.max_body_size must be positive (got %d)", cfg.Capture.MaxBodySize))
	}

	// ── Client ──
	if cfg.Client.Timeout.Duration < 0 {
		errs = append(errs, "client.timeout must not be negative")
	}
	if cfg.Client.ResponseHeaderTimeout.Duration < 0 {
		errs = append(errs, "client.response_header_timeout must not be negative")
	}
	if cfg.Client.MaxIdleConns < 0 {
		errs = append(errs, "client.max_idle_conns must not be negative")
	}
	if cfg.Client.MaxIdleConnsPerHost < 0 {
		errs = append(errs, "client.max_idle_conns_per_host must not be negative")
	}

	// ── Logging ──
	if !isValidLogLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level must be one of: debug, info, warn, error (got %q)", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, fmt.Sprintf("logging.format must be json or text (got %q)", cfg.Logging.Format))
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Sprintf("metrics.listen must be host:port (got %q)", cfg.Metrics.Listen))
		}
	}

	// ── Reload ──
	if cfg.Reload.Debounce.Duration < 0 {
		errs = append(errs, "reload.debounce must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidLogLevel reports whether level is a supported slog level name.
func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
