package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IndexMetrics tracks index builds run by the worker.
type IndexMetrics struct {
	registry *prometheus.Registry

	buildTotal    *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	buildInFlight prometheus.Gauge
	chunksIndexed *prometheus.CounterVec
	queueLag      *prometheus.HistogramVec
}

func NewIndexMetrics(service string) *IndexMetrics {
	registry := prometheus.NewRegistry()

	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafe",
			Subsystem: "indexer",
			Name:      "build_total",
			Help:      "Total index builds by status.",
		},
		[]string{"service", "index", "status"},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cafe",
			Subsystem: "indexer",
			Name:      "build_duration_seconds",
			Help:      "Index build duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	buildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cafe",
			Subsystem: "indexer",
			Name:      "build_in_flight",
			Help:      "Number of in-flight index builds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafe",
			Subsystem: "indexer",
			Name:      "chunks_indexed_total",
			Help:      "Total chunks upserted into the vector index.",
		},
		[]string{"service", "index"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cafe",
			Subsystem: "indexer",
			Name:      "queue_lag_seconds",
			Help:      "Delay between reindex request and build start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(buildTotal, buildDuration, buildInFlight, chunksIndexed, queueLag)

	return &IndexMetrics{
		registry:      registry,
		buildTotal:    buildTotal,
		buildDuration: buildDuration,
		buildInFlight: buildInFlight,
		chunksIndexed: chunksIndexed,
		queueLag:      queueLag,
	}
}

func (m *IndexMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *IndexMetrics) StartBuild() {
	m.buildInFlight.Inc()
}

func (m *IndexMetrics) FinishBuild(service, index string, chunks int, duration time.Duration, err error) {
	m.buildInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.buildTotal.WithLabelValues(service, index, status).Inc()
	m.buildDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil && chunks > 0 {
		m.chunksIndexed.WithLabelValues(service, index).Add(float64(chunks))
	}
}

func (m *IndexMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
