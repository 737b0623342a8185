// Package audit provides structured logging and Prometheus metrics for
// capture activity. It observes the capturer itself; it never touches the
// instrumented exchange.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Exchange holds everything known about one instrumented HTTP exchange.
type Exchange struct {
	ID       string // correlation id; generated when empty
	Method   string
	URL      string
	Status   int
	Duration time.Duration

	// Attrs are the captured body attributes, already in slog form.
	Attrs []slog.Attr
}

// Logger emits one structured record per captured HTTP exchange.
// A nil *Logger is valid and logs nothing.
type Logger struct {
	slogger *slog.Logger
}

// NewLogger creates an exchange logger on top of slogger.
func NewLogger(slogger *slog.Logger) *Logger {
	return &Logger{slogger: slogger}
}

// LogExchange writes one exchange record at Info. Field names follow HTTP
// semantic conventions; captured attributes are nested under "attributes".
func (l *Logger) LogExchange(ctx context.Context, e Exchange) {
	if l == nil {
		return
	}

	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}

	attrs := []slog.Attr{
		slog.String("exchange_id", id),
		slog.String("http.request.method", e.Method),
		slog.String("url.full", e.URL),
		slog.Int("http.response.status_code", e.Status),
		slog.Int64("duration_ms", e.Duration.Milliseconds()),
	}
	if len(e.Attrs) > 0 {
		attrs = append(attrs, slog.Attr{Key: "attributes", Value: slog.GroupValue(e.Attrs...)})
	}

	l.slogger.LogAttrs(ctx, slog.LevelInfo, "capture", attrs...)
}
