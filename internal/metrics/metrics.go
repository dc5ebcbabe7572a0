// Package metrics defines the Prometheus collectors exported by docpen.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	commands    *prometheus.CounterVec
	tokens      prometheus.Counter
	generations *prometheus.CounterVec
	genDuration prometheus.Histogram
	exports     *prometheus.HistogramVec
	httpLatency *prometheus.HistogramVec
	documents   prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpen",
			Name:      "commands_total",
			Help:      "Editor commands applied, by command and result.",
		}, []string{"command", "result"}),
		tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docpen",
			Name:      "stream_tokens_committed_total",
			Help:      "Generated tokens committed into documents.",
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docpen",
			Name:      "generations_total",
			Help:      "Finished generation sessions, by outcome.",
		}, []string{"outcome"}),
		genDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docpen",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of generation sessions.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		exports: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docpen",
			Name:      "export_duration_seconds",
			Help:      "Time spent serializing documents, by format.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"format"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docpen",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docpen",
			Name:      "open_documents",
			Help:      "Documents held in memory.",
		}),
	}
	m.registry.MustRegister(
		m.commands, m.tokens, m.generations, m.genDuration, m.exports, m.httpLatency, m.documents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CommandApplied(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commands.WithLabelValues(name, result).Inc()
}

func (m *Metrics) TokensCommitted(n int) {
	if m == nil {
		return
	}
	m.tokens.Add(float64(n))
}

func (m *Metrics) GenerationFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
	m.genDuration.Observe(d.Seconds())
}

func (m *Metrics) ExportObserved(format string, d time.Duration) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Observe(d.Seconds())
}

func (m *Metrics) HTTPObserved(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpLatency.WithLabelValues(route, statusLabel(status)).Observe(d.Seconds())
}

func (m *Metrics) SetDocuments(n int) {
	if m == nil {
		return
	}
	m.documents.Set(float64(n))
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}
