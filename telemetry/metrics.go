// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsTotal     *prometheus.CounterVec // command, result
	ResolutionsTotal  *prometheus.CounterVec // source, outcome
	UpstreamRequests  *prometheus.CounterVec // endpoint, status
	UpstreamRetries   *prometheus.CounterVec // endpoint
	ChatSendFailures  prometheus.Counter
	ChatMessagesTotal prometheus.Counter

	// Histograms (seconds)
	UpstreamDuration *prometheus.HistogramVec // endpoint

	// Gauges
	LimiterQueueDepth *prometheus.GaugeVec // limiter
	ChatConnected     prometheus.Gauge     // 1=connected,0=disconnected
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_commands_total", Help: "Chat commands handled by command and result"}, []string{"command", "result"})
		ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_resolutions_total", Help: "Item name resolutions by deciding source and outcome"}, []string{"source", "outcome"})
		UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_upstream_requests_total", Help: "Outbound HTTP requests by endpoint and status code"}, []string{"endpoint", "status"})
		UpstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_upstream_retries_total", Help: "Retries after transient upstream failures"}, []string{"endpoint"})
		ChatSendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_chat_send_failures_total", Help: "Outbound chat messages that could not be sent"})
		ChatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_chat_messages_received_total", Help: "Inbound chat messages seen"})
		UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "bot_upstream_duration_seconds", Help: "Outbound HTTP request duration seconds", Buckets: prometheus.DefBuckets}, []string{"endpoint"})
		LimiterQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "bot_limiter_queue_depth", Help: "Tasks waiting on or running in a rate limiter"}, []string{"limiter"})
		ChatConnected = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_chat_connected", Help: "Chat session connected=1 disconnected=0"})
	})
}

// IncCommand counts one handled chat command.
func IncCommand(command, result string) {
	if CommandsTotal != nil {
		CommandsTotal.WithLabelValues(command, result).Inc()
	}
}

// IncResolution counts one resolver outcome attributed to the source that decided it.
func IncResolution(source, outcome string) {
	if ResolutionsTotal != nil {
		ResolutionsTotal.WithLabelValues(source, outcome).Inc()
	}
}

// IncUpstream counts one outbound request. status 0 means a transport error.
func IncUpstream(endpoint string, status int) {
	if UpstreamRequests == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequests.WithLabelValues(endpoint, label).Inc()
}

// UpstreamLatency returns the request duration observer for endpoint, or nil before Init.
func UpstreamLatency(endpoint string) prometheus.Observer {
	if UpstreamDuration == nil {
		return nil
	}
	return UpstreamDuration.WithLabelValues(endpoint)
}

// IncRetry counts one retry against endpoint.
func IncRetry(endpoint string) {
	if UpstreamRetries != nil {
		UpstreamRetries.WithLabelValues(endpoint).Inc()
	}
}

// SetQueueDepth records the current depth of the named limiter.
func SetQueueDepth(limiter string, n int) {
	if LimiterQueueDepth != nil {
		LimiterQueueDepth.WithLabelValues(limiter).Set(float64(n))
	}
}

// IncChatSendFailure counts a dropped outbound chat message.
func IncChatSendFailure() {
	if ChatSendFailures != nil {
		ChatSendFailures.Inc()
	}
}

// IncChatMessage counts one inbound chat message.
func IncChatMessage() {
	if ChatMessagesTotal != nil {
		ChatMessagesTotal.Inc()
	}
}

// SetChatConnected sets gauge to 1 if connected else 0.
func SetChatConnected(connected bool) {
	if ChatConnected == nil {
		return
	}
	if connected {
		ChatConnected.Set(1)
	} else {
		ChatConnected.Set(0)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
