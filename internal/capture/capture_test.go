package capture

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/obswire/bodytap/internal/entity"
)

func newTestRecorder(cfg Config) *Recorder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRecorder(cfg, logger, nil)
}

// stubEntity lets tests control every part of the entity surface.
type stubEntity struct {
	length     int64
	repeatable bool
	open       func() (io.ReadCloser, error)
}

func (s *stubEntity) ContentLength() int64            { return s.length }
func (s *stubEntity) Repeatable() bool                { return s.repeatable }
func (s *stubEntity) Content() (io.ReadCloser, error) { return s.open() }
func (s *stubEntity) ContentType() string             { return "" }
func (s *stubEntity) ContentEncoding() string         { return "" }

// trackedReader records whether it was closed.
type trackedReader struct {
	io.Reader
	closed bool
}

func (t *trackedReader) Close() error {
	t.closed = true
	return nil
}

// brokenReader fails mid-stream instead of reaching EOF.
type brokenReader struct {
	r      io.Reader
	closed bool
}

func (b *brokenReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		return n, errors.New("connection reset")
	}
	return n, err
}

func (b *brokenReader) Close() error {
	b.closed = true
	return nil
}

func TestCaptureAbsentAndEmptyEntities(t *testing.T) {
	rec := newTestRecorder(Config{CaptureRequestBody: true, CaptureResponseBody: true})

	if _, _, ok := rec.Capture(nil, DirectionRequest); ok {
		t.Error("nil entity should not capture")
	}

	empty := entity.NewBytes(nil, "", "")
	if _, _, ok := rec.Capture(empty, DirectionRequest); ok {
		t.Error("zero-length entity should not capture")
	}

	if attrs, _ := rec.BeforeSend(nil); attrs != nil {
		t.Errorf("BeforeSend(nil) attrs = %v, want none", attrs)
	}
	if attrs, _ := rec.AfterReceive(empty); attrs != nil {
		t.Errorf("AfterReceive(empty) attrs = %v, want none", attrs)
	}
}

func TestCaptureSmallRepeatableBody(t *testing.T) {
	rec := newTestRecorder(Config{CaptureRequestBody: true})
	content := "test request body"
	e := entity.NewBytes([]byte(content), "text/plain", "")

	body, replacement, ok := rec.Capture(e, DirectionRequest)
	if !ok {
		t.Fatal("expected a capture")
	}
	if body.Text != content {
		t.Errorf("Text = %q, want %q", body.Text, content)
	}
	if body.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", body.Size, len(content))
	}
	if body.Truncated {
		t.Error("small body should not be truncated")
	}
	if replacement != entity.Entity(e) {
		t.Error("repeatable entity should be returned unchanged")
	}
}

func TestCaptureTruncatesAtExactByteCap(t *testing.T) {
	rec := newTestRecorder(Config{CaptureRequestBody: true, MaxBodySize: 10})

	// Exactly at the cap: no marker.
	exact := entity.NewBytes([]byte("0123456789"), "", "")
	body, _, ok := rec.Capture(exact, DirectionRequest)
	if !ok {
		t.Fatal("expected a capture")
	}
	if body.Truncated || body.Text != "0123456789" {
		t.Errorf("exact-cap body wrongly truncated: %+v", body)
	}

	// One byte over: trimmed to the cap, marker appended, true size kept.
	over := entity.NewBytes([]byte("0123456789X"), "", "")
	body, _, ok = rec.Capture(over, DirectionRequest)
	if !ok {
		t.Fatal("expected a capture")
	}
	if !body.Truncated {
		t.Error("over-cap body should be truncated")
	}
	if want := "0123456789" + TruncationMarker; body.Text != want {
		t.Errorf("Text = %q, want %q", body.Text, want)
	}
	if body.Size != 11 {
		t.Errorf("Size = %d, want 11 (true length, not captured length)", body.Size)
	}
}

func TestCaptureLargeBodyDefaults(t *testing.T) {
	rec := newTestRecorder(Config{CaptureResponseBody: true})
	content := strings.Repeat("x", 5000)
	e := entity.NewBytes([]byte(content), "", "")

	body, _, ok := rec.Capture(e, DirectionResponse)
	if !ok {
		t.Fatal("expected a capture")
	}
	if want := strings.Repeat("x", DefaultMaxBodySize) + TruncationMarker; body.Text != want {
		t.Errorf("Text length = %d, want %d xs plus marker", len(body.Text), DefaultMaxBodySize)
	}
	if body.Size != 5000 {
		t.Errorf("Size = %d, want 5000", body.Size)
	}
	if !body.Truncated {
		t.Error("expected truncation")
	}
}

func TestCaptureUnknownLengthStream(t *testing.T) {
	rec := newTestRecorder(Config{CaptureResponseBody: true})

	short := entity.NewReader(io.NopCloser(strings.NewReader(strings.Repeat("a", 100))), entity.LengthUnknown, "", "")
	body, _, ok := rec.Capture(short, DirectionResponse)
	if !ok {
		t.Fatal("expected a capture")
	}
	if body.Size != 100 {
		t.Errorf("Size = %d, want observed 100 for unknown length", body.Size)
	}
	if body.Truncated {
		t.Error("short unknown-length stream should not be truncated")
	}

	// A long one-shot stream is fully buffered first, so its true length
	// becomes known.
	long := entity.NewReader(io.NopCloser(strings.NewReader(strings.Repeat("b", 6000))), entity.LengthUnknown, "", "")
	body, _, ok = rec.Capture(long, DirectionResponse)
	if !ok {
		t.Fatal("expected a capture")
	}
	if body.Size != 6000 {
		t.Errorf("Size = %d, want 6000 after materialization", body.Size)
	}
	if !body.Truncated {
		t.Error("long unknown-length stream should be truncated")
	}

	// A repeatable entity that never declares a length only gets the capped
	// observed count.
	repeatable := &stubEntity{
		length:     entity.LengthUnknown,
		repeatable: true,
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(strings.Repeat("c", 6000))), nil
		},
	}
	body, _, ok = rec.Capture(repeatable, DirectionResponse)
	if !ok {
		t.Fatal("expected a capture")
	}
	if body.Size != DefaultMaxBodySize {
		t.Errorf("Size = %d, want capped %d", body.Size, DefaultMaxBodySize)
	}
	if !body.Truncated {
		t.Error("over-cap repeatable stream should be truncated")
	}
}

func TestCaptureMaterializesOneShotEntity(t *testing.T) {
	rec := newTestRecorder(Config{CaptureResponseBody: true})
	content := "one-shot payload"
	orig := entity.NewReader(io.NopCloser(strings.NewReader(content)), int64(len(content)), "text/plain", "")

	body, replacement, ok := rec.Capture(orig, DirectionResponse)
	if !ok {
		t.Fatal("expected a capture")
	}
	if body.Text != content {
		t.Errorf("Text = %q, want %q", body.Text, content)
	}
	if replacement == entity.Entity(orig) {
		t.Fatal("expected a replacement entity for a one-shot input")
	}
	if !replacement.Repeatable() {
		t.Fatal("replacement should be repeatable")
	}

	// Two more full reads of the replacement must match.
	for i := 0; i < 2; i++ {
		rc, err := replacement.Content()
		if err != nil {
			t.Fatalf("replacement Content() %d: %v", i+1, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != content {
			t.Errorf("replacement read %d mismatch: got %q", i+1, data)
		}
	}
}

func TestCaptureReadFailure(t *testing.T) {
	rec := newTestRecorder(Config{CaptureRequestBody: true})
	src := &brokenReader{r: strings.NewReader("some data")}
	e := &stubEntity{
		length:     100,
		repeatable: true,
		open:       func() (io.ReadCloser, error) { return src, nil },
	}

	_, replacement, ok := rec.Capture(e, DirectionRequest)
	if ok {
		t.Error("a failing stream should not capture")
	}
	if replacement != entity.Entity(e) {
		t.Error("failing capture should hand back the same entity")
	}
	if !src.closed {
		t.Error("stream should be closed on the failure path")
	}
}

func TestCaptureMaterializationFailure(t *testing.T) {
	rec := newTestRecorder(Config{CaptureResponseBody: true})
	src := &brokenReader{r: strings.NewReader("partial")}
	orig := entity.NewReader(src, entity.LengthUnknown, "", "")

	attrs, replacement := rec.AfterReceive(orig)
	if attrs != nil {
		t.Errorf("attrs = %v, want none after materialization failure", attrs)
	}
	if replacement != entity.Entity(orig) {
		t.Error("original entity should be preserved when materialization fails")
	}

	// A second attempt on the now-consumed original also degrades cleanly.
	if _, _, ok := rec.Capture(orig, DirectionResponse); ok {
		t.Error("capture on the drained original should fail gracefully")
	}
}

func TestBeforeSendDisabledDoesNotTouchEntity(t *testing.T) {
	rec := newTestRecorder(Config{CaptureRequestBody: false, CaptureResponseBody: true})
	content := "untouched"
	orig := entity.NewReader(io.NopCloser(strings.NewReader(content)), int64(len(content)), "", "")

	attrs, replacement := rec.BeforeSend(orig)
	if attrs != nil {
		t.Errorf("attrs = %v, want none with request capture disabled", attrs)
	}
	if replacement != entity.Entity(orig) {
		t.Error("disabled capture must not replace the entity")
	}

	// The one-shot stream must not have been consumed.
	rc, err := orig.Content()
	if err != nil {
		t.Fatalf("original entity was consumed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != content {
		t.Errorf("original content disturbed: got %q", data)
	}
}

func TestBeforeSendAttributes(t *testing.T) {
	rec := newTestRecorder(Config{CaptureRequestBody: true})
	e := entity.NewBytes([]byte("hello"), "", "")

	attrs, _ := rec.BeforeSend(e)
	if len(attrs) != 2 {
		t.Fatalf("got %d attributes, want 2", len(attrs))
	}
	if attrs[0].Key != AttrRequestBody || attrs[0].Value != "hello" {
		t.Errorf("body attribute = %+v", attrs[0])
	}
	if attrs[1].Key != AttrRequestBodySize {
		t.Errorf("size attribute key = %q", attrs[1].Key)
	}
	if size, isInt64 := attrs[1].Value.(int64); !isInt64 || size != 5 {
		t.Errorf("size attribute = %v (%T), want int64(5)", attrs[1].Value, attrs[1].Value)
	}
}

func TestAfterReceiveAttributes(t *testing.T) {
	rec := newTestRecorder(Config{CaptureResponseBody: true})
	e := entity.NewBytes([]byte(`{"ok":true}`), "application/json", "")

	attrs, _ := rec.AfterReceive(e)
	if len(attrs) != 2 {
		t.Fatalf("got %d attributes, want 2", len(attrs))
	}
	if attrs[0].Key != AttrResponseBody || attrs[0].Value != `{"ok":true}` {
		t.Errorf("body attribute = %+v", attrs[0])
	}
	if attrs[1].Key != AttrResponseBodySize || attrs[1].Value != int64(11) {
		t.Errorf("size attribute = %+v", attrs[1])
	}
}

func TestCaptureClosesStreamOnSuccess(t *testing.T) {
	rec := newTestRecorder(Config{CaptureRequestBody: true})
	src := &trackedReader{Reader: strings.NewReader("tracked")}
	e := &stubEntity{
		length:     7,
		repeatable: true,
		open:       func() (io.ReadCloser, error) { return src, nil },
	}

	if _, _, ok := rec.Capture(e, DirectionRequest); !ok {
		t.Fatal("expected a capture")
	}
	if !src.closed {
		t.Error("stream should be closed after a successful capture")
	}
}

func TestRecorderDefaults(t *testing.T) {
	rec := newTestRecorder(Config{})
	if got := rec.Config().MaxBodySize; got != DefaultMaxBodySize {
		t.Errorf("default MaxBodySize = %d, want %d", got, DefaultMaxBodySize)
	}
}

func TestMapSink(t *testing.T) {
	sink := MapSink{}
	sink.Put("k", "v")
	sink.Put("n", int64(3))
	if sink["k"] != "v" || sink["n"] != int64(3) {
		t.Errorf("MapSink contents = %v", sink)
	}
}
