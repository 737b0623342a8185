package audit

import (
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks capture activity and serves it in Prometheus text format.
// It uses a custom prometheus.Registry for isolation and testability, with
// proper histograms and HELP/TYPE annotations.
//
// A nil *Metrics is valid and records nothing, so library users who do not
// expose metrics pay nothing.
type Metrics struct {
	registry *prometheus.Registry

	capturesTotal         *prometheus.CounterVec
	truncationsTotal      *prometheus.CounterVec
	capturedBodyBytes     *prometheus.HistogramVec
	materializationsTotal *prometheus.CounterVec
	materializedBytes     prometheus.Counter
	buildInfo             *prometheus.GaugeVec
}

// NewMetrics creates a Metrics collector with a custom Prometheus registry.
// All metric families are pre-registered with HELP and TYPE metadata.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		capturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodytap_captures_total",
			Help: "Total number of body capture attempts by direction and result.",
		}, []string{"direction", "result"}),

		truncationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodytap_capture_truncations_total",
			Help: "Total number of captured bodies that exceeded the size cap.",
		}, []string{"direction"}),

		capturedBodyBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bodytap_captured_body_bytes",
			Help:    "Size in bytes of captured (post-cap) body text.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"direction"}),

		materializationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bodytap_entity_materializations_total",
			Help: "Total number of one-shot entities buffered into memory to become repeatable.",
		}, []string{"result"}),

		materializedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bodytap_materialized_bytes_total",
			Help: "Total bytes buffered while making entities repeatable.",
		}),

		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bodytap_build_info",
			Help: "Build information about the bodytap binary. Value is always 1.",
		}, []string{"version", "go_version"}),
	}

	reg.MustRegister(
		m.capturesTotal,
		m.truncationsTotal,
		m.capturedBodyBytes,
		m.materializationsTotal,
		m.materializedBytes,
		m.buildInfo,
	)

	return m
}

// RecordCapture increments the capture counter. Result is one of "ok",
// "empty", "error".
func (m *Metrics) RecordCapture(direction, result string) {
	if m == nil {
		return
	}
	m.capturesTotal.WithLabelValues(direction, result).Inc()
}

// RecordTruncation records a captured body that exceeded the size cap.
func (m *Metrics) RecordTruncation(direction string) {
	if m == nil {
		return
	}
	m.truncationsTotal.WithLabelValues(direction).Inc()
}

// ObserveCapturedBytes records the post-cap size of a captured body.
func (m *Metrics) ObserveCapturedBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.capturedBodyBytes.WithLabelValues(direction).Observe(float64(n))
}

// RecordMaterialization records a one-shot entity being buffered into
// memory. Pass the bytes drained; on failure the partial count is still
// added to the total.
func (m *Metrics) RecordMaterialization(success bool, bytes int64) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.materializationsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.materializedBytes.Add(float64(bytes))
	}
}

// SetBuildInfo sets the build information gauge. The gauge value is always
// 1; version and Go version are exposed as labels.
func (m *Metrics) SetBuildInfo(version string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// Handler returns an HTTP handler that serves the registry in Prometheus
// text format.
func (m *Metrics) Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}
}
