// Package capture implements bounded reading of HTTP entities into
// observability attributes.
//
// A Recorder reads up to a configured number of bytes from a request or
// response entity and renders them as UTF-8 text together with the
// payload's true length. One-shot entities are buffered into repeatable
// replacements first, so the application still receives the full body.
// Capture never fails loudly: every error on this path degrades to "no
// attributes recorded".
package capture

import (
	"io"
	"log/slog"

	"github.com/obswire/bodytap/internal/audit"
	"github.com/obswire/bodytap/internal/entity"
)

// TruncationMarker is the literal suffix appended to captured text when the
// payload exceeded the configured cap.
const TruncationMarker = "... (truncated)"

// DefaultMaxBodySize is the byte cap applied when none is configured.
const DefaultMaxBodySize = 4096

// Attribute keys written into sinks, following HTTP semantic-convention
// naming.
const (
	AttrRequestBody      = "http.request.body"
	AttrRequestBodySize  = "http.request.body.size"
	AttrResponseBody     = "http.response.body"
	AttrResponseBodySize = "http.response.body.size"
)

// Capture directions, used for diagnostics and metric labels.
const (
	DirectionRequest  = "request"
	DirectionResponse = "response"
)

// Config controls what a Recorder captures. It is read once at Recorder
// construction; changing capture settings at runtime means building a new
// Recorder, so a single capture session always sees one stable size budget.
type Config struct {
	CaptureRequestBody  bool
	CaptureResponseBody bool
	MaxBodySize         int
}

// withDefaults returns the config with zero or invalid fields replaced by
// documented defaults.
func (c Config) withDefaults() Config {
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	return c
}

// Body is one captured payload: the possibly truncated text, the true byte
// length of the original payload, and whether truncation occurred.
//
// Size always reflects the payload's real length (the declared length when
// known, otherwise the bytes actually read), never the length of Text. For
// unknown-length streams the observed count is itself capped at
// MaxBodySize; size reporting beyond the cap is unavailable for them.
type Body struct {
	Text      string
	Size      int64
	Truncated bool
}

// Attribute is a single key/value pair destined for an attribute sink.
type Attribute struct {
	Key   string
	Value any
}

// Recorder captures request and response entities according to its Config.
// A Recorder is immutable and safe for concurrent use.
type Recorder struct {
	cfg     Config
	logger  *slog.Logger
	metrics *audit.Metrics
}

// NewRecorder creates a Recorder. logger may be nil (slog.Default is used);
// metrics may be nil (nothing is recorded).
func NewRecorder(cfg Config, logger *slog.Logger, metrics *audit.Metrics) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{cfg: cfg.withDefaults(), logger: logger, metrics: metrics}
}

// Config returns the recorder's effective configuration.
func (r *Recorder) Config() Config { return r.cfg }

// Capture reads up to MaxBodySize bytes of e and reports the payload's true
// length. Non-repeatable entities are materialized first; the returned
// entity is then the repeatable replacement the caller must install in
// place of the original (it is e itself when no replacement was needed).
//
// ok is false when there was nothing to capture (absent entity,
// definitely-empty entity, zero bytes read) or when a read failed.
// Failures are logged at Debug and never propagate.
func (r *Recorder) Capture(e entity.Entity, direction string) (Body, entity.Entity, bool) {
	if e == nil || e.ContentLength() == 0 {
		return Body{}, e, false
	}

	target := e
	if !e.Repeatable() {
		replacement, n, err := entity.MakeRepeatable(e)
		if err != nil {
			r.logger.Debug("entity materialization failed",
				"direction", direction,
				"error", err,
			)
			r.metrics.RecordMaterialization(false, n)
			return Body{}, e, false
		}
		r.metrics.RecordMaterialization(true, n)
		target = replacement
	}

	body, captured, err := r.read(target)
	if err != nil {
		r.logger.Debug("body capture failed",
			"direction", direction,
			"error", err,
		)
		r.metrics.RecordCapture(direction, "error")
		return Body{}, target, false
	}
	if captured == 0 {
		r.metrics.RecordCapture(direction, "empty")
		return Body{}, target, false
	}

	r.metrics.RecordCapture(direction, "ok")
	r.metrics.ObserveCapturedBytes(direction, captured)
	if body.Truncated {
		r.metrics.RecordTruncation(direction)
	}
	return body, target, true
}

// read performs the bounded read. One byte beyond the cap is probed so a
// payload of exactly MaxBodySize bytes is not marked truncated. The same
// byte-cap boundary applies on every path; the marker is appended after
// trimming to exactly MaxBodySize bytes, and only when truncation occurred.
func (r *Recorder) read(e entity.Entity) (Body, int, error) {
	src, err := e.Content()
	if err != nil {
		return Body{}, 0, err
	}
	defer src.Close()

	maxSize := r.cfg.MaxBodySize
	data, err := io.ReadAll(io.LimitReader(src, int64(maxSize)+1))
	if err != nil {
		return Body{}, 0, err
	}

	truncated := len(data) > maxSize
	if truncated {
		data = data[:maxSize]
	}

	size := e.ContentLength()
	if size < 0 {
		// Unknown-length stream: the observed count, capped at max.
		size = int64(len(data))
	}
	if size > int64(maxSize) {
		truncated = true
	}

	text := string(data)
	if truncated && len(data) > 0 {
		text += TruncationMarker
	}
	return Body{Text: text, Size: size, Truncated: truncated}, len(data), nil
}

// BeforeSend captures the outgoing request entity at request start. It
// returns the attributes to record (nil when request capture is disabled or
// nothing was captured) and the entity the caller should install on the
// request: the materialized replacement when one was produced, otherwise e
// unchanged.
func (r *Recorder) BeforeSend(e entity.Entity) ([]Attribute, entity.Entity) {
	if !r.cfg.CaptureRequestBody {
		return nil, e
	}
	body, replacement, ok := r.Capture(e, DirectionRequest)
	if !ok {
		return nil, replacement
	}
	return []Attribute{
		{Key: AttrRequestBody, Value: body.Text},
		{Key: AttrRequestBodySize, Value: body.Size},
	}, replacement
}

// AfterReceive captures the response entity at response end. It must run
// before the response is handed to the caller's handler: the returned
// entity is the repeatable replacement to install on the response so that
// downstream readers still see the full payload.
func (r *Recorder) AfterReceive(e entity.Entity) ([]Attribute, entity.Entity) {
	if !r.cfg.CaptureResponseBody {
		return nil, e
	}
	body, replacement, ok := r.Capture(e, DirectionResponse)
	if !ok {
		return nil, replacement
	}
	return []Attribute{
		{Key: AttrResponseBody, Value: body.Text},
		{Key: AttrResponseBodySize, Value: body.Size},
	}, replacement
}
