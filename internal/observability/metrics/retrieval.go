package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jptamayo/juris-rag/internal/core/domain"
)

// RetrievalMetrics tracks the retrieval pipeline and its HTTP surface.
type RetrievalMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal    *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
	retrievedSources  *prometheus.HistogramVec
	emptyResultTotal  prometheus.Counter
	sentinelDropTotal prometheus.Counter
	rateLimitedTotal  prometheus.Counter
}

func NewRetrievalMetrics(service string) *RetrievalMetrics {
	registry := prometheus.NewRegistry()

	m := &RetrievalMetrics{
		registry: registry,
		service:  service,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "juris",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"service", "method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "juris",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   "juris",
				Subsystem:   "http",
				Name:        "in_flight_requests",
				Help:        "Number of in-flight HTTP requests.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		retrievalTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "juris",
				Subsystem: "retrieval",
				Name:      "requests_total",
				Help:      "Total retrieval requests by cascade stage.",
			},
			[]string{"service", "stage"},
		),
		retrievalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "juris",
				Subsystem: "retrieval",
				Name:      "duration_seconds",
				Help:      "End-to-end retrieval duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "stage"},
		),
		retrievedSources: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "juris",
				Subsystem: "retrieval",
				Name:      "sources",
				Help:      "Distribution of surfaced sources per request.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			},
			[]string{"service", "stage"},
		),
		emptyResultTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "juris",
				Subsystem:   "retrieval",
				Name:        "empty_results_total",
				Help:        "Total requests that surfaced no citable source.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		sentinelDropTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "juris",
				Subsystem:   "retrieval",
				Name:        "sentinel_drops_total",
				Help:        "Total candidates dropped for an unreliable snippet.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
		rateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   "juris",
				Subsystem:   "http",
				Name:        "rate_limited_total",
				Help:        "Total requests rejected by the daily limiter.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.retrievalTotal,
		m.retrievalDuration,
		m.retrievedSources,
		m.emptyResultTotal,
		m.sentinelDropTotal,
		m.rateLimitedTotal,
	)
	return m
}

func (m *RetrievalMetrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.requestTotal.WithLabelValues(m.service, method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(m.service, method, path).Observe(duration.Seconds())
}

func (m *RetrievalMetrics) IncInFlight()     { m.requestInFlight.Inc() }
func (m *RetrievalMetrics) DecInFlight()     { m.requestInFlight.Dec() }
func (m *RetrievalMetrics) IncRateLimited()  { m.rateLimitedTotal.Inc() }
func (m *RetrievalMetrics) IncSentinelDrop() { m.sentinelDropTotal.Inc() }

func (m *RetrievalMetrics) ObserveRetrieval(stage domain.CascadeStage, sources int, duration time.Duration) {
	m.retrievalTotal.WithLabelValues(m.service, string(stage)).Inc()
	m.retrievalDuration.WithLabelValues(m.service, string(stage)).Observe(duration.Seconds())
	m.retrievedSources.WithLabelValues(m.service, string(stage)).Observe(float64(sources))
	if sources == 0 {
		m.emptyResultTotal.Inc()
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *RetrievalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
