package entity

import (
	"io"
	"net/http"
)

// FromRequest adapts an outgoing request body to an Entity. It returns nil
// when the request carries no body. The entity is repeatable when the
// request exposes GetBody, which http.NewRequest sets for in-memory bodies.
//
// A request ContentLength of 0 with a non-nil body means "unknown" on the
// client side, so it maps to LengthUnknown rather than empty.
func FromRequest(req *http.Request) Entity {
	if req == nil || req.Body == nil || req.Body == http.NoBody {
		return nil
	}

	ct := req.Header.Get("Content-Type")
	ce := req.Header.Get("Content-Encoding")
	length := req.ContentLength
	if length == 0 {
		length = LengthUnknown
	}

	if req.GetBody != nil {
		return &rewindable{open: req.GetBody, length: length, contentType: ct, contentEncoding: ce}
	}
	return NewReader(req.Body, length, ct, ce)
}

// FromResponse adapts a response body to an Entity. Response bodies are
// one-shot: the transport hands over a stream that is consumed as it is
// read. Returns nil when the response carries no body.
func FromResponse(resp *http.Response) Entity {
	if resp == nil || resp.Body == nil || resp.Body == http.NoBody {
		return nil
	}
	return NewReader(resp.Body, resp.ContentLength,
		resp.Header.Get("Content-Type"), resp.Header.Get("Content-Encoding"))
}

// InstallRequest puts a repeatable entity's content onto req, so the
// transport (and any redirect or retry) reads the materialized bytes
// instead of the drained original.
func InstallRequest(req *http.Request, e Entity) error {
	rc, err := e.Content()
	if err != nil {
		return err
	}
	req.Body = rc
	if e.Repeatable() {
		req.GetBody = func() (io.ReadCloser, error) { return e.Content() }
	}
	if n := e.ContentLength(); n >= 0 {
		req.ContentLength = n
	}
	return nil
}

// InstallResponse replaces the response body with the entity's content, so
// application code reading resp.Body after capture sees the complete
// payload.
func InstallResponse(resp *http.Response, e Entity) error {
	rc, err := e.Content()
	if err != nil {
		return err
	}
	resp.Body = rc
	if n := e.ContentLength(); n >= 0 {
		resp.ContentLength = n
	}
	return nil
}
