package bodytap

import (
	"context"
	"net/http"

	"github.com/obswire/bodytap/internal/ctxkeys"
	"github.com/obswire/bodytap/internal/entity"
)

// ContextWithSink returns a context carrying a per-request attribute sink.
// It overrides the transport's default sink for requests made with that
// context.
func ContextWithSink(ctx context.Context, s Sink) context.Context {
	return ctxkeys.WithSink(ctx, s)
}

// ContextWithExchangeID returns a context carrying a caller-chosen
// correlation id, used in exchange log records instead of a generated one.
func ContextWithExchangeID(ctx context.Context, id string) context.Context {
	return ctxkeys.WithExchangeID(ctx, id)
}

// ResponseHandler processes an HTTP response, typically reading its body.
type ResponseHandler func(*http.Response) error

// WrapResponseHandler adapts fn for callback-style consumers that are not
// routed through the Transport: the response entity is made repeatable and
// captured into sink before fn runs, so fn still reads the full body. Do
// not combine with a client already using this Transport; the body would be
// captured twice.
func (t *Transport) WrapResponseHandler(sink Sink, fn ResponseHandler) ResponseHandler {
	return func(resp *http.Response) error {
		rec := t.recorder.Load()
		if e := entity.FromResponse(resp); e != nil {
			attrs, replacement := rec.AfterReceive(e)
			if replacement != nil && replacement != e {
				if err := entity.InstallResponse(resp, replacement); err != nil {
					t.logger.Debug("installing materialized response body failed", "error", err)
				}
			}
			if sink != nil {
				for _, a := range attrs {
					sink.Put(a.Key, a.Value)
				}
			}
		}
		return fn(resp)
	}
}
