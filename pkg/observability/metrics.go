package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthDecisionsTotal    *prometheus.CounterVec
	AuthDecisionDuration  *prometheus.HistogramVec
	UsernameResolutionErr prometheus.Counter

	// Upstream membership API metrics
	MembershipChecksTotal   *prometheus.CounterVec
	MembershipCheckDuration *prometheus.HistogramVec
	PaginationPagesTotal    prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fedgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Authorization metrics
		AuthDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedgate_auth_decisions_total",
				Help: "Authorization decisions by outcome and deny reason",
			},
			[]string{"outcome", "reason"},
		),
		AuthDecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fedgate_auth_decision_duration_seconds",
				Help:    "Authorization decision duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		UsernameResolutionErr: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fedgate_username_resolution_errors_total",
				Help: "Logins whose claims yielded no usable username",
			},
		),

		// Upstream membership API metrics
		MembershipChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fedgate_membership_checks_total",
				Help: "Remote org/team membership checks by result",
			},
			[]string{"result"},
		),
		MembershipCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fedgate_membership_check_duration_seconds",
				Help:    "Remote membership check duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"result"},
		),
		PaginationPagesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fedgate_upstream_pages_fetched_total",
				Help: "Pages fetched while following upstream pagination links",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthDecisionsTotal,
		m.AuthDecisionDuration,
		m.UsernameResolutionErr,
		m.MembershipChecksTotal,
		m.MembershipCheckDuration,
		m.PaginationPagesTotal,
	)

	return m
}

// ObserveDecision records one authorization decision
func (m *Metrics) ObserveDecision(outcome, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AuthDecisionsTotal.WithLabelValues(outcome, reason).Inc()
	m.AuthDecisionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveMembershipCheck records one remote membership check
func (m *Metrics) ObserveMembershipCheck(member bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "not_member"
	if member {
		result = "member"
	}
	m.MembershipChecksTotal.WithLabelValues(result).Inc()
	m.MembershipCheckDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObservePageFetched records one page fetched during pagination
func (m *Metrics) ObservePageFetched() {
	if m == nil {
		return
	}
	m.PaginationPagesTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// MetricsHandler returns the handler serving the metrics endpoint
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
