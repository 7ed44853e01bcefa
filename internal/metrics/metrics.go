package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the competition and HTTP metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry        prometheus.Gatherer
	joins           *prometheus.CounterVec
	answers         prometheus.Counter
	activities      *prometheus.CounterVec
	autoSubmissions prometheus.Counter
	finishes        *prometheus.CounterVec
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Collector {
	c := &Collector{
		registry: reg,
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "competition_joins_total",
			Help: "Join attempts by outcome",
		}, []string{"result"}),
		answers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "competition_answers_total",
			Help: "Accepted answer submissions",
		}),
		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "competition_activity_events_total",
			Help: "Suspicious activity reports by type",
		}, []string{"type"}),
		autoSubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "competition_auto_submissions_total",
			Help: "Sessions completed by the activity threshold",
		}),
		finishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "competition_finishes_total",
			Help: "Sessions moved to a terminal state by reason",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "endpoint"}),
	}
	reg.MustRegister(c.joins, c.answers, c.activities, c.autoSubmissions, c.finishes, c.requests, c.duration)
	return c
}

func (c *Collector) Join(result string) {
	if c == nil {
		return
	}
	c.joins.WithLabelValues(result).Inc()
}

func (c *Collector) Answer() {
	if c == nil {
		return
	}
	c.answers.Inc()
}

func (c *Collector) Activity(kind string) {
	if c == nil {
		return
	}
	c.activities.WithLabelValues(kind).Inc()
}

func (c *Collector) AutoSubmission() {
	if c == nil {
		return
	}
	c.autoSubmissions.Inc()
}

func (c *Collector) Finish(reason string) {
	if c == nil {
		return
	}
	c.finishes.WithLabelValues(reason).Inc()
}

// Middleware counts requests and observes their latency per route template.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil {
			ctx.Next()
			return
		}
		start := time.Now()
		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		c.requests.WithLabelValues(ctx.Request.Method, endpoint, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.duration.WithLabelValues(ctx.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the prometheus text format.
func (c *Collector) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return func(ctx *gin.Context) {
		h.ServeHTTP(ctx.Writer, ctx.Request)
	}
}
