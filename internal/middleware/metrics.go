package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Message metrics
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luisa_bot_messages_received_total",
		Help: "Total number of messages received",
	}, []string{"source"})

	messagesIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luisa_bot_messages_ignored_total",
		Help: "Total number of messages ignored, by reason",
	}, []string{"reason"})

	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luisa_bot_decisions_total",
		Help: "Response decisions by tier and result",
	}, []string{"tier", "result"})

	replies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luisa_bot_replies_total",
		Help: "Generated replies by producing stage",
	}, []string{"stage"})

	// AI metrics
	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "luisa_bot_ai_request_duration_seconds",
		Help:    "Duration of AI requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "status"})

	aiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luisa_bot_ai_requests_total",
		Help: "Total number of AI requests",
	}, []string{"provider", "status"})

	// Rate limit metrics
	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "luisa_bot_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	})

	// Audio metrics
	audioPlaybacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "luisa_bot_audio_playbacks_total",
		Help: "Audio playback attempts by provider and status",
	}, []string{"provider", "status"})

	audioQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "luisa_bot_audio_queue_depth",
		Help: "Pending audio requests per voice connection",
	}, []string{"guild"})

	// Tracker sizes
	trackerSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "luisa_bot_tracker_entries",
		Help: "Entries held by each in-memory tracker after a sweep",
	}, []string{"tracker"})
)

// Metrics provides methods to record metrics. A nil *Metrics records nothing.
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived records a received message
func (m *Metrics) RecordMessageReceived(source string) {
	if m == nil {
		return
	}
	messagesReceived.WithLabelValues(source).Inc()
}

// RecordMessageIgnored records an ignored message
func (m *Metrics) RecordMessageIgnored(reason string) {
	if m == nil {
		return
	}
	messagesIgnored.WithLabelValues(reason).Inc()
}

// RecordDecision records a decision engine outcome
func (m *Metrics) RecordDecision(tier string, respond bool) {
	if m == nil {
		return
	}
	result := "skip"
	if respond {
		result = "respond"
	}
	decisions.WithLabelValues(tier, result).Inc()
}

// RecordReply records which generator stage produced a reply
func (m *Metrics) RecordReply(stage string) {
	if m == nil {
		return
	}
	replies.WithLabelValues(stage).Inc()
}

// RecordAIRequest records an AI request
func (m *Metrics) RecordAIRequest(provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	aiRequestDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	aiRequestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded() {
	if m == nil {
		return
	}
	rateLimitExceeded.Inc()
}

// RecordAudioPlayback records one playback attempt
func (m *Metrics) RecordAudioPlayback(provider, status string) {
	if m == nil {
		return
	}
	audioPlaybacks.WithLabelValues(provider, status).Inc()
}

// SetAudioQueueDepth sets the pending request count of one queue
func (m *Metrics) SetAudioQueueDepth(guild string, depth int) {
	if m == nil {
		return
	}
	audioQueueDepth.WithLabelValues(guild).Set(float64(depth))
}

// SetTrackerSize sets the entry count of a tracker
func (m *Metrics) SetTrackerSize(tracker string, size int) {
	if m == nil {
		return
	}
	trackerSize.WithLabelValues(tracker).Set(float64(size))
}

// NewRouter builds the metrics and health router
func NewRouter(path string) *mux.Router {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}

// NewMetricsServer creates the metrics HTTP server; the caller owns its lifecycle
func NewMetricsServer(port int, path string) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewRouter(path),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
