package httpapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auditflow/internal/compliance"
)

// Metrics holds the Prometheus collectors of the API on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	authAttempts        *prometheus.CounterVec
	reviewsTotal        *prometheus.CounterVec
	auditsFinalized     prometheus.Counter
	evidenceFiles       prometheus.Counter
}

// NewMetrics registers the API metrics, named "<prefix>_...".
func NewMetrics(prefix string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		authAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Login and registration attempts by outcome",
		}, []string{"kind", "outcome"}),
		reviewsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_item_reviews_total",
			Help: "Item reviews by decision",
		}, []string{"decision"}),
		auditsFinalized: f.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_audits_finalized_total",
			Help: "Audits auto-approved after their last item was approved",
		}),
		evidenceFiles: f.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_evidence_files_total",
			Help: "Evidence files stored",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records the count and duration of every request by route.
func (m *Metrics) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			// Let the error handler write the response so the status is final.
			c.Error(err)
		}

		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Response().Status)
		m.httpRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request().Method, path, status).Observe(time.Since(start).Seconds())
		return nil
	}
}

func (m *Metrics) recordAuth(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.authAttempts.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) recordReview(d compliance.Decision, finalized bool) {
	m.reviewsTotal.WithLabelValues(string(d)).Inc()
	if finalized {
		m.auditsFinalized.Inc()
	}
}

func (m *Metrics) recordEvidence(files int) {
	m.evidenceFiles.Add(float64(files))
}
