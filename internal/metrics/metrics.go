package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for Mailblast
type Metrics struct {
	// Campaign counters
	CampaignsTotal      *prometheus.CounterVec
	MessagesSentTotal   prometheus.Counter
	MessagesFailedTotal *prometheus.CounterVec
	SendRetriesTotal    prometheus.Counter

	// Send latency
	SendDurationSeconds prometheus.Histogram

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// Rate limiting
	RateLimitExceededTotal *prometheus.CounterVec

	// System metrics
	UptimeSeconds prometheus.Gauge
	Goroutines    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		// Campaign counters
		CampaignsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailblast_campaigns_total",
				Help: "Total number of campaigns dispatched",
			},
			[]string{"source"},
		),
		MessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailblast_messages_sent_total",
				Help: "Total number of messages accepted by the provider",
			},
		),
		MessagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailblast_messages_failed_total",
				Help: "Total number of messages that failed permanently",
			},
			[]string{"reason"},
		),
		SendRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailblast_send_retries_total",
				Help: "Total number of send attempts retried after a temporary error",
			},
		),

		// Send latency
		SendDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailblast_send_duration_seconds",
				Help:    "Duration of one provider send call in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		// API metrics
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailblast_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailblast_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailblast_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		// Rate limiting
		RateLimitExceededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailblast_ratelimit_exceeded_total",
				Help: "Total number of sends rejected by the outbound rate limiter",
			},
			[]string{"window"},
		),

		// System metrics
		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailblast_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailblast_goroutines",
				Help: "Number of active goroutines",
			},
		),

		registry: reg,
	}

	// Register all metrics
	reg.MustRegister(
		m.CampaignsTotal,
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.SendRetriesTotal,
		m.SendDurationSeconds,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.RateLimitExceededTotal,
		m.UptimeSeconds,
		m.Goroutines,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncCampaigns increments the campaign counter
func IncCampaigns(source string) {
	m := Global()
	if m != nil {
		m.CampaignsTotal.WithLabelValues(source).Inc()
	}
}

// IncMessagesSent increments the sent message counter
func IncMessagesSent() {
	m := Global()
	if m != nil {
		m.MessagesSentTotal.Inc()
	}
}

// IncMessagesFailed increments the failed message counter
func IncMessagesFailed(reason string) {
	m := Global()
	if m != nil {
		m.MessagesFailedTotal.WithLabelValues(reason).Inc()
	}
}

// IncSendRetries increments the retry counter
func IncSendRetries() {
	m := Global()
	if m != nil {
		m.SendRetriesTotal.Inc()
	}
}

// ObserveSendDuration records the duration of one provider send call
func ObserveSendDuration(seconds float64) {
	m := Global()
	if m != nil {
		m.SendDurationSeconds.Observe(seconds)
	}
}

// IncRateLimitExceeded increments rate limit exceeded counter
func IncRateLimitExceeded(window string) {
	m := Global()
	if m != nil {
		m.RateLimitExceededTotal.WithLabelValues(window).Inc()
	}
}

// IncAPIErrors increments API error counter
func IncAPIErrors(errorType string) {
	m := Global()
	if m != nil {
		m.APIErrorsTotal.WithLabelValues(errorType).Inc()
	}
}
