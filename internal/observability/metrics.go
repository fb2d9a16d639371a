package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_http_requests_total",
			Help: "Total number of HTTP requests processed by the service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicechat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicechat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_events_published_total",
			Help: "Total number of broadcast events published by type.",
		},
		[]string{"type"},
	)
	eventsQueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_events_queued_total",
			Help: "Total number of events buffered for offline users.",
		},
		[]string{"type"},
	)
	eventsReplayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_events_replayed_total",
			Help: "Total number of buffered events replayed on reconnect.",
		},
		[]string{"type"},
	)
	callTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_call_transitions_total",
			Help: "Total number of call session status transitions.",
		},
		[]string{"status"},
	)
	presenceChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicechat_presence_changes_total",
			Help: "Total number of presence status changes.",
		},
		[]string{"status"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicechat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		eventsPublishedTotal,
		eventsQueuedTotal,
		eventsReplayedTotal,
		callTransitionsTotal,
		presenceChangesTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() { wsActiveConnections.Inc() }

func DecWSActive() { wsActiveConnections.Dec() }

func IncWSEvent(event string) { wsEventsTotal.WithLabelValues(event).Inc() }

func IncEventPublished(eventType string) { eventsPublishedTotal.WithLabelValues(eventType).Inc() }

func IncEventQueued(eventType string) { eventsQueuedTotal.WithLabelValues(eventType).Inc() }

func IncEventReplayed(eventType string) { eventsReplayedTotal.WithLabelValues(eventType).Inc() }

func IncCallTransition(status string) { callTransitionsTotal.WithLabelValues(status).Inc() }

func IncPresenceChange(status string) { presenceChangesTotal.WithLabelValues(status).Inc() }

func IncAMQPPublishError() { amqpPublishErrorsTotal.Inc() }
