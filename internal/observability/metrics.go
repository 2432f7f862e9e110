package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "podassist_active_sessions",
		Help: "Number of active recording sessions (0 or 1)",
	})

	sessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "podassist_sessions_total",
		Help: "Total number of recording sessions started",
	})

	// Audio metrics
	framesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "podassist_audio_frames_total",
		Help: "Total audio frames captured",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "podassist_audio_frames_dropped_total",
		Help: "Frames dropped because the frame queue was full",
	})

	// Transcription metrics
	transcriptEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podassist_transcript_events_total",
		Help: "Transcript events by kind",
	}, []string{"kind"}) // intermediate, final, no_match, error

	// LLM metrics
	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podassist_llm_requests_total",
		Help: "Total LLM question-answering requests",
	}, []string{"status"})

	llmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "podassist_llm_latency_seconds",
		Help:    "LLM request latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Wake word metrics
	wakeDetections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "podassist_wake_detections_total",
		Help: "Total wake-word detections",
	})

	questionCaptures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podassist_question_captures_total",
		Help: "Spoken question capture attempts by outcome",
	}, []string{"outcome"}) // ok, timeout, error, empty

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "podassist_errors_total",
		Help: "Total errors by type and component",
	}, []string{"type", "component"})
)

// RecordSessionStart records a recording session becoming active.
func RecordSessionStart() {
	activeSessions.Inc()
	sessionsTotal.Inc()
}

// RecordSessionEnd records a recording session ending.
func RecordSessionEnd() {
	activeSessions.Dec()
}

// RecordFrame records one captured audio frame.
func RecordFrame() {
	framesCaptured.Inc()
}

// RecordFrameDropped records a frame dropped on a full queue.
func RecordFrameDropped() {
	framesDropped.Inc()
}

// RecordTranscriptEvent records a transcript event by kind.
func RecordTranscriptEvent(kind string) {
	transcriptEvents.WithLabelValues(kind).Inc()
}

// RecordLLMRequest records one LLM call with its outcome and latency.
func RecordLLMRequest(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	llmRequests.WithLabelValues(status).Inc()
	llmLatency.Observe(seconds)
}

// RecordWakeDetection records one wake-word detection.
func RecordWakeDetection() {
	wakeDetections.Inc()
}

// RecordQuestionCapture records the outcome of a spoken-question capture.
func RecordQuestionCapture(outcome string) {
	questionCaptures.WithLabelValues(outcome).Inc()
}

// RecordError records an error by type and component.
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
