package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

// ProcessingMetrics observes document processing runs in the api and worker.
type ProcessingMetrics struct {
	registry *prometheus.Registry
	service  string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	stageFailures   *prometheus.CounterVec
	queueLag        *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
}

func NewProcessingMetrics(service string) *ProcessingMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processing",
			Name:      "documents_total",
			Help:      "Processed documents by result source and status.",
		},
		[]string{"service", "source", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processing",
			Name:      "duration_seconds",
			Help:      "Pipeline duration in seconds by result source.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "source"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "processing",
			Name:      "in_flight",
			Help:      "Number of in-flight document processing runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processing",
			Name:      "stage_failures_total",
			Help:      "Remote enrichment stages that failed and were degraded locally.",
		},
		[]string{"service", "stage"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between enqueueing a document and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, stageFailures, queueLag, breakerState)

	return &ProcessingMetrics{
		registry:        registry,
		service:         service,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		stageFailures:   stageFailures,
		queueLag:        queueLag,
		breakerState:    breakerState,
	}
}

func (m *ProcessingMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ProcessingMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *ProcessingMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *ProcessingMetrics) FinishDocument(source domain.ProcessingSource, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(m.service, string(source), status).Inc()
	if err == nil {
		m.processDuration.WithLabelValues(m.service, string(source)).Observe(duration.Seconds())
	}
}

func (m *ProcessingMetrics) ObserveStageFailure(stage string) {
	m.stageFailures.WithLabelValues(m.service, stage).Inc()
}

func (m *ProcessingMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *ProcessingMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
