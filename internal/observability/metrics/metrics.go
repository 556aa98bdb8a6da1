// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "virtual_secretary"

// Pipeline stages used as label values.
const (
	StageTranscription = "transcription"
	StageGeneration    = "generation"
	StageSynthesis     = "synthesis"
	StagePersist       = "persist"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Turn metrics
	TurnsTotal    *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	DegradedTurns prometheus.Counter

	// Stage metrics
	StageLatency *prometheus.HistogramVec
	StageErrors  *prometheus.CounterVec

	// Generation metrics
	GenerationFallbacks prometheus.Counter
	HistoryTurns        prometheus.Histogram

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsExpired prometheus.Counter

	// Voice metrics
	VoiceSamplesLoaded prometheus.Gauge

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them on reg. The service
// passes prometheus.DefaultRegisterer; tests pass prometheus.NewRegistry()
// to stay isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns by final state",
		}, []string{"outcome"}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end duration of a conversation turn",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		DegradedTurns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_degraded_total",
			Help:      "Total number of turns that completed with text only",
		}),

		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of each pipeline stage in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage", "backend"}),
		StageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Total number of pipeline stage failures",
		}, []string{"stage", "backend"}),

		GenerationFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_fallbacks_total",
			Help:      "Total number of canned fallback replies returned",
		}),
		HistoryTurns: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_turns",
			Help:      "Dialogue history length after each successful generation",
			Buckets:   []float64{2, 4, 8, 16, 32, 64, 128, 256},
		}),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open conversation sessions",
		}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of conversation sessions created",
		}),
		SessionsExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Total number of sessions closed for inactivity",
		}),

		VoiceSamplesLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voice_samples_loaded",
			Help:      "Number of voice reference samples selected at startup",
		}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of API requests",
		}, []string{"protocol", "method", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"protocol", "method"}),
	}
}

// RecordTurn records a finished turn by outcome ("done", "degraded", "errored").
func (m *Metrics) RecordTurn(outcome string, durationSeconds float64) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(durationSeconds)
	if outcome == "degraded" {
		m.DegradedTurns.Inc()
	}
}

// RecordStage records the latency of a stage call and whether it failed.
func (m *Metrics) RecordStage(stage, backend string, err error, latencySeconds float64) {
	m.StageLatency.WithLabelValues(stage, backend).Observe(latencySeconds)
	if err != nil {
		m.StageErrors.WithLabelValues(stage, backend).Inc()
	}
}

// RecordFallback records a canned reply masking a generation failure.
func (m *Metrics) RecordFallback() {
	m.GenerationFallbacks.Inc()
}

// RecordHistoryLength records the dialogue history length after a turn.
func (m *Metrics) RecordHistoryLength(turns int) {
	m.HistoryTurns.Observe(float64(turns))
}

// RecordSessionStart records a new session.
func (m *Metrics) RecordSessionStart() {
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a closed session.
func (m *Metrics) RecordSessionEnd(expired bool) {
	m.SessionsActive.Dec()
	if expired {
		m.SessionsExpired.Inc()
	}
}

// SetVoiceSamples records how many reference samples are in use.
func (m *Metrics) SetVoiceSamples(n int) {
	m.VoiceSamplesLoaded.Set(float64(n))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRequest records an HTTP or gRPC request.
func (m *Metrics) RecordRequest(protocol, method, code string, durationSeconds float64) {
	m.RequestsTotal.WithLabelValues(protocol, method, code).Inc()
	m.RequestDuration.WithLabelValues(protocol, method).Observe(durationSeconds)
}
