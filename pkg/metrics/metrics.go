package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securestop_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "securestop_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	alertsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securestop_alerts_received_total",
			Help: "Alerts accepted into the inbox by severity and origin role.",
		},
		[]string{"severity", "role"},
	)
	incidentsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securestop_incidents_opened_total",
			Help: "Incidents opened from escalating alerts.",
		},
		[]string{"severity"},
	)
	incidentsResolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "securestop_incidents_resolved_total",
			Help: "Incidents moved to resolved.",
		},
	)
	tripTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securestop_trip_transitions_total",
			Help: "Applied trip status transitions.",
		},
		[]string{"from", "to"},
	)
	geofenceTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securestop_geofence_triggers_total",
			Help: "Automatic trip start/end fired by the geofence.",
		},
		[]string{"kind"},
	)
	notifyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securestop_notify_failures_total",
			Help: "Notification sink delivery failures.",
		},
		[]string{"sink"},
	)
	kvWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "securestop_kv_write_failures_total",
			Help: "Failed background persistence writes.",
		},
	)
	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "securestop_websocket_clients",
			Help: "Connected websocket viewers.",
		},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpLatency,
			alertsReceived, incidentsOpened, incidentsResolved,
			tripTransitions, geofenceTriggers,
			notifyFailures, kvWriteFailures, wsClients,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request count and latency per route template
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		httpLatency.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func IncAlertReceived(severity, role string) {
	if severity == "" {
		severity = "none"
	}
	alertsReceived.WithLabelValues(severity, role).Inc()
}

func IncIncidentOpened(severity string) {
	incidentsOpened.WithLabelValues(severity).Inc()
}

func IncIncidentResolved() {
	incidentsResolved.Inc()
}

func IncTripTransition(from, to string) {
	tripTransitions.WithLabelValues(from, to).Inc()
}

func IncGeofenceTrigger(kind string) {
	geofenceTriggers.WithLabelValues(kind).Inc()
}

func IncNotifyFailure(sink string) {
	notifyFailures.WithLabelValues(sink).Inc()
}

func IncKVWriteFailure() {
	kvWriteFailures.Inc()
}

func SetWebSocketClients(n int) {
	wsClients.Set(float64(n))
}
