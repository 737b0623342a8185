// Package entity models an HTTP message payload as a byte source with
// length, repeatability, and content metadata. A payload declares its byte
// length (LengthUnknown for chunked/streaming bodies), may or may not be
// readable more than once, and carries content-type/encoding strings.
//
// The capture layer reads entities it does not own, so the central
// operation here is MakeRepeatable: buffering a one-shot stream into memory
// once, so that both the capture path and the application can read the full
// payload.
package entity

import (
	"bytes"
	"errors"
	"io"
)

// chunkSize is the intermediate buffer size used when materializing a
// one-shot entity into memory. It is fixed and independent of any capture
// cap: the materialized entity must carry the complete payload for
// downstream readers, not just the captured prefix.
const chunkSize = 8 * 1024

// LengthUnknown marks an entity whose byte length is not declared
// (for example a chunked response).
const LengthUnknown int64 = -1

// ErrConsumed is returned when the content of a one-shot entity is
// requested a second time.
var ErrConsumed = errors.New("entity: one-shot content already consumed")

// Entity is a logical HTTP payload: a byte source plus metadata.
type Entity interface {
	// ContentLength returns the declared byte length, or LengthUnknown.
	ContentLength() int64

	// Repeatable reports whether Content may be called more than once,
	// each call yielding the complete payload.
	Repeatable() bool

	// Content returns a reader over the payload. For one-shot entities
	// only the first call succeeds. The caller owns the returned reader
	// and must close it.
	Content() (io.ReadCloser, error)

	ContentType() string
	ContentEncoding() string
}

// Bytes is an in-memory, repeatable entity. Every Content call yields a
// fresh reader over the same byte slice.
type Bytes struct {
	data            []byte
	contentType     string
	contentEncoding string
}

// NewBytes creates a repeatable entity over data. The slice is not copied;
// callers must not modify it afterwards.
func NewBytes(data []byte, contentType, contentEncoding string) *Bytes {
	return &Bytes{data: data, contentType: contentType, contentEncoding: contentEncoding}
}

// ContentLength returns the exact byte length of the buffered payload.
func (b *Bytes) ContentLength() int64 { return int64(len(b.data)) }

// Repeatable always reports true for an in-memory entity.
func (b *Bytes) Repeatable() bool { return true }

// Content returns a fresh reader over the buffered bytes.
func (b *Bytes) Content() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// ContentType returns the content-type metadata string.
func (b *Bytes) ContentType() string { return b.contentType }

// ContentEncoding returns the content-encoding metadata string.
func (b *Bytes) ContentEncoding() string { return b.contentEncoding }

// Data returns the underlying bytes. Callers must not modify the slice.
func (b *Bytes) Data() []byte { return b.data }

// Reader is a one-shot entity over a stream. Content hands out the stream
// on the first call and returns ErrConsumed afterwards.
type Reader struct {
	rc              io.ReadCloser
	length          int64
	contentType     string
	contentEncoding string
	consumed        bool
}

// NewReader creates a one-shot entity over rc with the given declared
// length (LengthUnknown when not declared).
func NewReader(rc io.ReadCloser, length int64, contentType, contentEncoding string) *Reader {
	return &Reader{rc: rc, length: length, contentType: contentType, contentEncoding: contentEncoding}
}

// ContentLength returns the declared length, or LengthUnknown.
func (r *Reader) ContentLength() int64 { return r.length }

// Repeatable always reports false: the underlying stream reads once.
func (r *Reader) Repeatable() bool { return false }

// Content returns the underlying stream on the first call and ErrConsumed
// on subsequent calls.
func (r *Reader) Content() (io.ReadCloser, error) {
	if r.consumed {
		return nil, ErrConsumed
	}
	r.consumed = true
	return r.rc, nil
}

// ContentType returns the content-type metadata string.
func (r *Reader) ContentType() string { return r.contentType }

// ContentEncoding returns the content-encoding metadata string.
func (r *Reader) ContentEncoding() string { return r.contentEncoding }

// rewindable is a repeatable entity backed by a re-open function, as
// provided by http.Request.GetBody.
type rewindable struct {
	open            func() (io.ReadCloser, error)
	length          int64
	contentType     string
	contentEncoding string
}

func (r *rewindable) ContentLength() int64              { return r.length }
func (r *rewindable) Repeatable() bool                  { return true }
func (r *rewindable) Content() (io.ReadCloser, error)   { return r.open() }
func (r *rewindable) ContentType() string               { return r.contentType }
func (r *rewindable) ContentEncoding() string           { return r.contentEncoding }

// MakeRepeatable returns an entity whose content can be read any number of
// times, plus the number of bytes it buffered to get there.
//
// Already-repeatable entities are returned unchanged with a byte count of
// -1 (nothing was read). One-shot entities are drained completely into
// memory through a fixed chunk buffer; the returned Bytes entity carries
// the original's content metadata and it is the caller's job to substitute
// it for the original wherever the original was installed.
//
// On a mid-stream read failure the source is closed and the error returned.
// The caller should leave the original entity in place; a later capture
// attempt on it will fail gracefully.
func MakeRepeatable(e Entity) (Entity, int64, error) {
	if e == nil {
		return nil, 0, errors.New("entity: nil entity")
	}
	if e.Repeatable() {
		return e, -1, nil
	}

	src, err := e.Content()
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)
	var total int64
	for {
		n, rerr := src.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			src.Close()
			return nil, total, rerr
		}
	}
	// The payload is fully buffered at this point; a close failure does not
	// invalidate it.
	_ = src.Close()

	return NewBytes(buf.Bytes(), e.ContentType(), e.ContentEncoding()), total, nil
}
