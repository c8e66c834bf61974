package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lunara/internal/store"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Dialog metrics
	Turns             *prometheus.CounterVec
	SessionsFinalized *prometheus.CounterVec

	// Extraction metrics
	Extractions        *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec

	// Speech metrics
	SpeechRequests *prometheus.CounterVec
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics(st *store.SessionStore) *Metrics {
	metrics := &Metrics{
		// Processed turns by outcome (counter - only goes up)
		Turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lunara_turns_total",
			Help: "Total number of processed dialog turns by outcome",
		}, []string{"outcome"}), // outcome: "complete" or "needs_more_info"

		// Finalized sessions by reason
		SessionsFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lunara_sessions_finalized_total",
			Help: "Total number of finalized sessions by reason",
		}, []string{"reason"}),

		// Extraction runs by engine and degradation
		Extractions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lunara_extractions_total",
			Help: "Total number of extraction runs by engine",
		}, []string{"engine", "degraded"}),

		// Extraction latency histogram
		ExtractionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lunara_extraction_duration_seconds",
			Help:    "Extraction latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}, // up to 1 minute for LLM responses
		}, []string{"engine"}),

		// Speech provider calls by direction and status
		SpeechRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lunara_speech_requests_total",
			Help: "Total number of speech provider requests",
		}, []string{"direction", "provider", "status"}), // direction: "stt" or "tts"
	}

	// Register a collector that reads active sessions from the store
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "lunara_sessions_active",
			Help: "Current number of active sessions",
		},
		func() float64 {
			if st != nil {
				return float64(st.ActiveSessions())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// TurnProcessed records a processed dialog turn
func (m *Metrics) TurnProcessed(outcome string) {
	m.Turns.WithLabelValues(outcome).Inc()
}

// SessionFinalized records a finalized session
func (m *Metrics) SessionFinalized(reason string) {
	m.SessionsFinalized.WithLabelValues(reason).Inc()
}

// ObserveExtraction records one extraction run
func (m *Metrics) ObserveExtraction(engine string, d time.Duration, degraded bool) {
	label := "false"
	if degraded {
		label = "true"
	}
	m.Extractions.WithLabelValues(engine, label).Inc()
	m.ExtractionDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// SpeechRequest records a speech provider call
func (m *Metrics) SpeechRequest(direction, provider, status string) {
	m.SpeechRequests.WithLabelValues(direction, provider, status).Inc()
}
