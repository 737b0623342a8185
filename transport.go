// Package bodytap instruments an http.Client to record request and response
// bodies as observability attributes, bounded by a configurable size cap.
//
// The Transport reads bodies it does not own: one-shot payloads are first
// buffered into repeatable entities so the application still receives the
// full body, and any capture failure degrades to "no attributes recorded"
// without affecting the round trip.
package bodytap

import (
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/obswire/bodytap/internal/audit"
	"github.com/obswire/bodytap/internal/capture"
	"github.com/obswire/bodytap/internal/config"
	"github.com/obswire/bodytap/internal/ctxkeys"
	"github.com/obswire/bodytap/internal/entity"
)

// Sink receives captured attributes. See MapSink for a simple
// implementation.
type Sink = capture.Sink

// MapSink collects attributes into a map. Make one per exchange.
type MapSink = capture.MapSink

// Config controls what the Transport captures. It is read once when the
// Transport (or a reloaded recorder) is constructed; both directions
// default to off and MaxBodySize defaults to 4096.
type Config struct {
	CaptureRequestBody  bool
	CaptureResponseBody bool
	MaxBodySize         int
}

// TruncationMarker is the literal suffix appended to captured text when the
// payload exceeded MaxBodySize.
const TruncationMarker = capture.TruncationMarker

// Attribute keys written by the Transport.
const (
	AttrRequestBody      = capture.AttrRequestBody
	AttrRequestBodySize  = capture.AttrRequestBodySize
	AttrResponseBody     = capture.AttrResponseBody
	AttrResponseBodySize = capture.AttrResponseBodySize
)

// settings converts the public config into the recorder's form.
func (c Config) settings() capture.Config {
	return capture.Config{
		CaptureRequestBody:  c.CaptureRequestBody,
		CaptureResponseBody: c.CaptureResponseBody,
		MaxBodySize:         c.MaxBodySize,
	}
}

// Transport is an http.RoundTripper that captures request and response
// bodies around a base transport. It is safe for concurrent use; the
// recorder it captures with is swapped atomically on Reload, so each
// exchange sees one stable configuration.
type Transport struct {
	base         http.RoundTripper
	recorder     atomic.Pointer[capture.Recorder]
	logger       *slog.Logger
	metrics      *audit.Metrics
	exchangeLog  *audit.Logger
	logExchanges bool
	sink         Sink
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the underlying transport. Defaults to http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) { t.base = rt }
}

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithSink sets the default attribute sink, used when the request context
// does not carry one (see ContextWithSink).
func WithSink(s Sink) Option {
	return func(t *Transport) { t.sink = s }
}

// WithExchangeLog enables one Info-level log record per exchange that
// produced attributes. Off by default; library users usually consume
// attributes through their sink.
func WithExchangeLog() Option {
	return func(t *Transport) { t.logExchanges = true }
}

// NewTransport creates a capturing Transport with the given settings.
func NewTransport(cfg Config, opts ...Option) *Transport {
	t := &Transport{
		base:   http.DefaultTransport,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.metrics = audit.NewMetrics()
	t.exchangeLog = audit.NewLogger(t.logger)
	t.recorder.Store(capture.NewRecorder(cfg.settings(), t.logger, t.metrics))
	return t
}

// NewClient returns an *http.Client instrumented with a capturing Transport,
// plus the Transport for metrics and reload access.
func NewClient(cfg Config, opts ...Option) (*http.Client, *Transport) {
	t := NewTransport(cfg, opts...)
	return &http.Client{Transport: t}, t
}

// Unwrap returns the base transport.
func (t *Transport) Unwrap() http.RoundTripper { return t.base }

// Reload builds a fresh recorder from cfg and swaps it in atomically.
// Exchanges already in flight keep the recorder they started with.
func (t *Transport) Reload(cfg Config) {
	t.recorder.Store(capture.NewRecorder(cfg.settings(), t.logger, t.metrics))
	t.logger.Info("capture settings reloaded",
		"request_body", cfg.CaptureRequestBody,
		"response_body", cfg.CaptureResponseBody,
		"max_body_size", cfg.MaxBodySize,
	)
}

// OnConfigReload implements config.Reloadable.
func (t *Transport) OnConfigReload(newCfg *config.Config) error {
	t.Reload(Config{
		CaptureRequestBody:  newCfg.Capture.RequestBody,
		CaptureResponseBody: newCfg.Capture.ResponseBody,
		MaxBodySize:         newCfg.Capture.MaxBodySize,
	})
	return nil
}

// MetricsHandler serves the transport's capture metrics in Prometheus text
// format.
func (t *Transport) MetricsHandler() http.HandlerFunc {
	return t.metrics.Handler()
}

// SetBuildInfo exposes version information on the metrics registry.
func (t *Transport) SetBuildInfo(version string) {
	t.metrics.SetBuildInfo(version)
}

// RoundTrip captures the outgoing body, performs the exchange on the base
// transport, then makes the response body repeatable and captures it, all
// before the response is returned to the caller, so application code still
// reads the complete payload. The caller's request is never mutated: when a
// one-shot request body has to be replaced, the swap happens on a shallow
// clone. Transport errors pass through unchanged and produce no attributes.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := t.recorder.Load()
	start := time.Now()

	var attrs []capture.Attribute

	sendReq := req
	if reqEntity := entity.FromRequest(req); reqEntity != nil {
		reqAttrs, replacement := rec.BeforeSend(reqEntity)
		attrs = append(attrs, reqAttrs...)
		if replacement != nil && replacement != reqEntity {
			clone := req.Clone(req.Context())
			if err := entity.InstallRequest(clone, replacement); err != nil {
				t.logger.Debug("installing materialized request body failed", "error", err)
			} else {
				sendReq = clone
			}
		}
	}

	resp, err := t.base.RoundTrip(sendReq)
	if err != nil {
		return resp, err
	}

	if respEntity := entity.FromResponse(resp); respEntity != nil {
		respAttrs, replacement := rec.AfterReceive(respEntity)
		attrs = append(attrs, respAttrs...)
		if replacement != nil && replacement != respEntity {
			if ierr := entity.InstallResponse(resp, replacement); ierr != nil {
				t.logger.Debug("installing materialized response body failed", "error", ierr)
			}
		}
	}

	if len(attrs) > 0 {
		sink := t.sink
		if s, ok := ctxkeys.SinkFrom(req.Context()); ok {
			sink = s
		}
		if sink != nil {
			for _, a := range attrs {
				sink.Put(a.Key, a.Value)
			}
		}
	}

	if t.logExchanges && len(attrs) > 0 {
		slogAttrs := make([]slog.Attr, 0, len(attrs))
		for _, a := range attrs {
			slogAttrs = append(slogAttrs, slog.Any(a.Key, a.Value))
		}
		id, _ := ctxkeys.ExchangeIDFrom(req.Context())
		t.exchangeLog.LogExchange(req.Context(), audit.Exchange{
			ID:       id,
			Method:   req.Method,
			URL:      req.URL.String(),
			Status:   resp.StatusCode,
			Duration: time.Since(start),
			Attrs:    slogAttrs,
		})
	}

	return resp, nil
}

// NewBaseTransport returns an http.Transport tuned from the client section
// of the configuration, suitable as the base for a capturing Transport.
func NewBaseTransport(cfg config.ClientConfig) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout.Duration,
		TLSHandshakeTimeout:   10 * time.Second,
	}
}
