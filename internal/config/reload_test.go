package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

type recordingSubscriber struct {
	calls []*Config
	err   error
}

func (s *recordingSubscriber) OnConfigReload(cfg *Config) error {
	s.calls = append(s.calls, cfg)
	return s.err
}

func newTestReloader(t *testing.T, initial string) (*Reloader, string) {
	t.Helper()
	path := writeTempYAML(t, initial)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading initial config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReloader(path, cfg, logger), path
}

func TestReloadNotifiesOnCaptureChange(t *testing.T) {
	r, path := newTestReloader(t, `
capture:
  request_body: false
  max_body_size: 4096
`)
	sub := &recordingSubscriber{}
	r.Register(sub)

	if err := os.WriteFile(path, []byte(`
capture:
  request_body: true
  max_body_size: 1024
`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(sub.calls) != 1 {
		t.Fatalf("subscriber called %d times, want 1", len(sub.calls))
	}
	got := sub.calls[0]
	if !got.Capture.RequestBody || got.Capture.MaxBodySize != 1024 {
		t.Errorf("subscriber received %+v", got.Capture)
	}
	if r.Current().Capture.MaxBodySize != 1024 {
		t.Errorf("Current() not updated: %+v", r.Current().Capture)
	}
}

func TestReloadKeepsOldConfigOnInvalidFile(t *testing.T) {
	r, path := newTestReloader(t, `
capture:
  max_body_size: 4096
`)
	sub := &recordingSubscriber{}
	r.Register(sub)

	if err := os.WriteFile(path, []byte(`
capture:
  max_body_size: -1
`), 0644); err != nil {
		t.Fatal(err)
	}

	err := r.Reload()
	if err == nil {
		t.Fatal("expected an error for an invalid config")
	}
	if !strings.Contains(err.Error(), "max_body_size") {
		t.Errorf("error = %v, want max_body_size complaint", err)
	}
	if len(sub.calls) != 0 {
		t.Errorf("subscriber called %d times, want 0", len(sub.calls))
	}
	if r.Current().Capture.MaxBodySize != 4096 {
		t.Errorf("old config not retained: %+v", r.Current().Capture)
	}
}

func TestReloadSkipsNotifyWithoutReloadableChanges(t *testing.T) {
	r, path := newTestReloader(t, `
logging:
  level: info
`)
	sub := &recordingSubscriber{}
	r.Register(sub)

	if err := os.WriteFile(path, []byte(`
logging:
  level: debug
`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(sub.calls) != 0 {
		t.Errorf("subscriber called %d times for a restart-only change, want 0", len(sub.calls))
	}
	// The stored config still advances so repeated reloads stay quiet.
	if r.Current().Logging.Level != "debug" {
		t.Errorf("Current().Logging.Level = %q", r.Current().Logging.Level)
	}
}

func TestReloadNoChanges(t *testing.T) {
	r, _ := newTestReloader(t, `
capture:
  request_body: true
`)
	sub := &recordingSubscriber{}
	r.Register(sub)

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(sub.calls) != 0 {
		t.Errorf("subscriber called %d times with no changes", len(sub.calls))
	}
}
