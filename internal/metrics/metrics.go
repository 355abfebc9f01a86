package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeMinutes            = "minutes"
	OutcomeEmpty              = "empty"
	OutcomeTranscriptionError = "transcription_error"
	OutcomeSummarizationError = "summarization_error"
	OutcomeUpstreamError      = "upstream_error"
	OutcomeCancelled          = "cancelled"

	ResultInterim = "interim"
	ResultFinal   = "final"
)

// Metrics contains the Prometheus collectors for live sessions and batch requests.
type Metrics struct {
	// Live sessions
	ActiveSessions   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	SessionDuration  prometheus.Histogram

	// Audio
	AudioBytes    prometheus.Counter
	DroppedChunks prometheus.Counter

	// Recognition and summarization
	RecognitionResults    *prometheus.CounterVec
	SummarizationDuration prometheus.Histogram

	// Batch paths
	BatchRequests *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "minutagen_active_sessions",
			Help: "Current number of live transcription sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "minutagen_sessions_started_total",
			Help: "Total number of live transcription sessions started",
		}),
		SessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "minutagen_sessions_finished_total",
			Help: "Total number of live transcription sessions finished, by outcome",
		}, []string{"outcome"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "minutagen_session_duration_seconds",
			Help:    "Wall-clock duration of live transcription sessions",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "minutagen_audio_bytes_total",
			Help: "Total number of audio bytes forwarded to the recognizer",
		}),
		DroppedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "minutagen_dropped_audio_chunks_total",
			Help: "Total number of audio chunks dropped because no session was active",
		}),
		RecognitionResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "minutagen_recognition_results_total",
			Help: "Total number of recognition results received, by kind",
		}, []string{"kind"}),
		SummarizationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "minutagen_summarization_duration_seconds",
			Help:    "Time spent waiting for the summarization service",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		BatchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "minutagen_batch_requests_total",
			Help: "Total number of batch minutes requests, by source and status",
		}, []string{"source", "status"}),
	}
}
