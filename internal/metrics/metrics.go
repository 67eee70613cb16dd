package metrics

import (
	"net/http"
	"time"

	"codeberg.org/vestilook/server/internal/vton"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vestilook"

// Metrics holds the service's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	submissions   prometheus.Counter
	completions   *prometheus.CounterVec
	urlLookups    *prometheus.CounterVec
	tryOnDuration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),

		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_submissions_total",
			Help:      "Generation requests accepted and queued",
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_completions_total",
			Help:      "Generations that reached a final status",
		}, []string{"status", "error_code"}),
		urlLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signed_url_lookups_total",
			Help:      "Signed URL cache lookups by outcome",
		}, []string{"result"}),
		tryOnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vertex_tryon_duration_seconds",
			Help:      "Latency of virtual try-on calls",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
		}, []string{"error_code"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submissions,
		m.completions,
		m.urlLookups,
		m.tryOnDuration,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the prometheus text format
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(m.handler)
}

func (m *Metrics) Submitted() {
	m.submissions.Inc()
}

func (m *Metrics) Completed(status vton.Status, code vton.ErrorCode) {
	m.completions.WithLabelValues(string(status), string(code)).Inc()
}

func (m *Metrics) TryOnDuration(d time.Duration, code vton.ErrorCode) {
	m.tryOnDuration.WithLabelValues(string(code)).Observe(d.Seconds())
}

// URLLookup counts a signed URL cache lookup; pass it to assets.WithObserver
func (m *Metrics) URLLookup(result string) {
	m.urlLookups.WithLabelValues(result).Inc()
}
