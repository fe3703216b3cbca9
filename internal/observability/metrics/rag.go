package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ragMetrics struct {
	answered   *prometheus.CounterVec
	failures   *prometheus.CounterVec
	hits       *prometheus.CounterVec
	noContext  *prometheus.CounterVec
	chunks     *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
	ungrounded *prometheus.CounterVec
	grounding  *prometheus.HistogramVec
	resets     *prometheus.CounterVec
}

func newRAGMetrics(factory promauto.Factory) *ragMetrics {
	byEndpoint := []string{"service", "endpoint"}
	counter := func(subsystem, name, help string, labels []string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	histogram := func(name, help string, buckets []float64) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		}, byEndpoint)
	}

	return &ragMetrics{
		answered:   counter("rag", "requests_total", "Total answered questions.", byEndpoint),
		failures:   counter("rag", "failures_total", "Total failed questions by error kind.", []string{"service", "endpoint", "kind"}),
		hits:       counter("rag", "retrieval_hit_total", "Total answers with at least one retrieved chunk.", byEndpoint),
		noContext:  counter("rag", "no_context_total", "Total answers produced without retrieved chunks.", byEndpoint),
		ungrounded: counter("rag", "ungrounded_total", "Total answers whose overlap with retrieved context fell below the threshold.", byEndpoint),
		resets:     counter("session", "resets_total", "Total conversation session resets.", []string{"service"}),
		chunks:     histogram("retrieved_chunks", "Distribution of retrieved chunks per answer.", []float64{0, 1, 2, 3, 5, 8, 10}),
		duration:   histogram("duration_seconds", "Rephrase, retrieve and generate duration in seconds.", []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32}),
		grounding:  histogram("grounding_score", "Token overlap between answer and retrieved context.", []float64{0, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9, 1}),
	}
}

func (m *HTTPServerMetrics) RecordRAGObservation(service, endpoint string, sourceCount int, duration time.Duration) {
	m.rag.answered.WithLabelValues(service, endpoint).Inc()
	m.rag.chunks.WithLabelValues(service, endpoint).Observe(float64(sourceCount))
	m.rag.duration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if sourceCount > 0 {
		m.rag.hits.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.rag.noContext.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordRAGFailure(service, endpoint, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.rag.failures.WithLabelValues(service, endpoint, kind).Inc()
}

func (m *HTTPServerMetrics) RecordGrounding(service, endpoint string, score float64, grounded bool) {
	m.rag.grounding.WithLabelValues(service, endpoint).Observe(score)
	if !grounded {
		m.rag.ungrounded.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordSessionReset(service string) {
	m.rag.resets.WithLabelValues(service).Inc()
}
