// Package metrics holds the Prometheus collectors for the speech pipeline.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicewrite"

// Metrics groups the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	synthesisDuration *prometheus.HistogramVec
	playback          *prometheus.CounterVec
	playbackDuration  prometheus.Histogram
	queueDepth        prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speak_requests_total",
			Help:      "Speak requests by completion mode and result.",
		}, []string{"mode", "result"}),
		synthesisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Time spent producing an audio file.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"backend", "result"}),
		playback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_total",
			Help:      "Playback attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		playbackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "playback_duration_seconds",
			Help:      "Wall time of a single playback.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_queue_depth",
			Help:      "Audio files waiting for playback.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.synthesisDuration,
		m.playback,
		m.playbackDuration,
		m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Request counts a finished speak request. mode is "async" or "sync".
func (m *Metrics) Request(mode, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mode, result).Inc()
}

// Synthesis records one synthesizer call.
func (m *Metrics) Synthesis(backend string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.synthesisDuration.WithLabelValues(backend, result).Observe(d.Seconds())
}

// Playback records one player invocation.
func (m *Metrics) Playback(strategy, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.playback.WithLabelValues(strategy, outcome).Inc()
	m.playbackDuration.Observe(d.Seconds())
}

// QueueDepth sets the number of queued files.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
