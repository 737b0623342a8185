package config

import "reflect"

// Change describes a single configuration field that differs between two
// configs.
type Change struct {
	Field      string      // dot-separated field path (e.g., "capture.max_body_size")
	OldValue   interface{} // previous value
	NewValue   interface{} // new value
	Reloadable bool        // whether this change can be applied without restart
}

// Diff compares two Config values and returns a list of changes. Capture
// settings are reloadable: the transport rebuilds its recorder from them.
// Logging, client transport tuning, metrics wiring, and the reload settings
// themselves require a restart.
func Diff(old, new *Config) []Change {
	var changes []Change

	// ── Reloadable: capture ──
	diffField(&changes, "capture.request_body", old.Capture.RequestBody, new.Capture.RequestBody, true)
	diffField(&changes, "capture.response_body", old.Capture.ResponseBody, new.Capture.ResponseBody, true)
	diffField(&changes, "capture.max_body_size", old.Capture.MaxBodySize, new.Capture.MaxBodySize, true)

	// ── Non-reloadable: client ──
	diffField(&changes, "client.timeout", old.Client.Timeout.Duration, new.Client.Timeout.Duration, false)
	diffField(&changes, "client.response_header_timeout", old.Client.ResponseHeaderTimeout.Duration, new.Client.ResponseHeaderTimeout.Duration, false)
	diffField(&changes, "client.max_idle_conns", old.Client.MaxIdleConns, new.Client.MaxIdleConns, false)
	diffField(&changes, "client.max_idle_conns_per_host", old.Client.MaxIdleConnsPerHost, new.Client.MaxIdleConnsPerHost, false)

	// ── Non-reloadable: logging ──
	diffField(&changes, "logging.level", old.Logging.Level, new.Logging.Level, false)
	diffField(&changes, "logging.format", old.Logging.Format, new.Logging.Format, false)

	// ── Non-reloadable: metrics ──
	diffField(&changes, "metrics.enabled", old.Metrics.Enabled, new.Metrics.Enabled, false)
	diffField(&changes, "metrics.listen", old.Metrics.Listen, new.Metrics.Listen, false)

	// ── Non-reloadable: reload ──
	diffField(&changes, "reload.enabled", old.Reload.Enabled, new.Reload.Enabled, false)
	diffField(&changes, "reload.watch_file", old.Reload.WatchFile, new.Reload.WatchFile, false)
	diffField(&changes, "reload.debounce", old.Reload.Debounce.Duration, new.Reload.Debounce.Duration, false)

	return changes
}

// diffField appends a Change when oldVal and newVal differ.
func diffField(changes *[]Change, field string, oldVal, newVal interface{}, reloadable bool) {
	if !reflect.DeepEqual(oldVal, newVal) {
		*changes = append(*changes, Change{
			Field:      field,
			OldValue:   oldVal,
			NewValue:   newVal,
			Reloadable: reloadable,
		})
	}
}
