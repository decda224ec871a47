package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is what services report to. NopRecorder satisfies it in tests.
type Recorder interface {
	ObserveAccessDecision(programType, outcome string)
	IncWaitlistSignup(programSlug string)
	IncNotificationFailure(kind string)
}

type PrometheusCollector struct {
	accessDecisions      *prometheus.CounterVec
	waitlistSignups      *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers the catalog metrics on reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		accessDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_access_decisions_total",
			Help: "Lecture access decisions by program type and outcome",
		}, []string{"program_type", "outcome"}),

		waitlistSignups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_waitlist_signups_total",
			Help: "Accepted waitlist submissions per program",
		}, []string{"program_slug"}),

		notificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_notification_failures_total",
			Help: "Outbound notifications that could not be delivered",
		}, []string{"kind"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
}

func (pc *PrometheusCollector) ObserveAccessDecision(programType, outcome string) {
	pc.accessDecisions.WithLabelValues(programType, outcome).Inc()
}

func (pc *PrometheusCollector) IncWaitlistSignup(programSlug string) {
	pc.waitlistSignups.WithLabelValues(programSlug).Inc()
}

func (pc *PrometheusCollector) IncNotificationFailure(kind string) {
	pc.notificationFailures.WithLabelValues(kind).Inc()
}

// GinMiddleware records one observation per request, labelled by route
// template so ids do not explode cardinality.
func (pc *PrometheusCollector) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		pc.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		pc.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

type NopRecorder struct{}

func (NopRecorder) ObserveAccessDecision(string, string) {}
func (NopRecorder) IncWaitlistSignup(string)             {}
func (NopRecorder) IncNotificationFailure(string)        {}
