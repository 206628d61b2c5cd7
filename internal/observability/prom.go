package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "medportal"

var (
	httpBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	dbBuckets   = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2}
	jobBuckets  = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15, 30, 60}
)

// Prom holds every series the api and worker export. Both binaries build
// one against their own registry; series a binary never touches stay empty.
type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	JobDuration  *prometheus.HistogramVec
	JobResults   *prometheus.CounterVec
	JobsInFlight prometheus.Gauge

	// Notifications counts delivery attempts by kind and result
	// (sent, skipped, failed).
	Notifications *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route template and status.",
		}, []string{"method", "route", "status"}),
		RequestsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: httpBuckets,
		}, []string{"method", "route", "status"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "in_flight_requests",
			Help: "HTTP requests currently being served.",
		}, []string{"method", "route"}),

		DbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "db", Name: "query_duration_seconds",
			Help: "Latency of named repository operations.", Buckets: dbBuckets,
		}, []string{"op", "status"}),
		DbErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "db", Name: "errors_total",
			Help: "Failed repository operations by error class.",
		}, []string{"op", "class"}),

		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "duration_seconds",
			Help: "Job run time by type and outcome.", Buckets: jobBuckets,
		}, []string{"job_type", "result"}),
		JobResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "results_total",
			Help: "Job runs by type and outcome.",
		}, []string{"job_type", "result"}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "jobs", Name: "in_flight",
			Help: "Jobs executing in this process.",
		}),

		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notifications", Name: "total",
			Help: "Notification deliveries by kind and result.",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.JobDuration, p.JobResults, p.JobsInFlight,
		p.Notifications,
	)
	return p
}

func (p *Prom) ObserveJob(jobType string, outcome JobOutcome, d time.Duration) {
	p.JobResults.WithLabelValues(jobType, string(outcome)).Inc()
	p.JobDuration.WithLabelValues(jobType, string(outcome)).Observe(d.Seconds())
}

func (p *Prom) CountNotification(kind, result string) {
	p.Notifications.WithLabelValues(kind, result).Inc()
}

// HTTPMiddleware records every request under its route template so ids in
// paths do not blow up label cardinality.
func (p *Prom) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		inflight := p.InFlight.WithLabelValues(method, route)
		inflight.Inc()
		start := time.Now()

		c.Next()

		inflight.Dec()
		status := strconv.Itoa(c.Writer.Status())
		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
	}
}
