package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
	LabelVerdict = "verdict"
	LabelRoute   = "route"
	LabelSuccess = "success"
)

var (
	// RequestsTotal counts all HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devpi_lockdown_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	// RequestDuration tracks the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "devpi_lockdown_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// AuthcheckTotal counts authcheck evaluations by verdict and matched route
	AuthcheckTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devpi_lockdown_authcheck_total",
			Help: "Total number of authcheck subrequest evaluations",
		},
		[]string{LabelVerdict, LabelRoute},
	)

	// LoginTotal counts login attempts by outcome
	LoginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devpi_lockdown_login_total",
			Help: "Total number of login attempts",
		},
		[]string{LabelSuccess},
	)

	// CredentialValidationTotal counts upstream credential validations
	CredentialValidationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devpi_lockdown_credential_validation_total",
			Help: "Total number of session credential validations against the upstream",
		},
		[]string{LabelSuccess},
	)

	// UpstreamRequestTotal counts proxied requests to the devpi upstream
	UpstreamRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devpi_lockdown_upstream_requests_total",
			Help: "Total number of requests proxied to the devpi upstream",
		},
		[]string{LabelMethod, LabelStatus},
	)

	// UpstreamRequestDuration tracks the duration of proxied requests
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "devpi_lockdown_upstream_request_duration_seconds",
			Help:    "Duration of requests proxied to the devpi upstream in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)
)

// Collector provides methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordRequest records metrics for an HTTP request
func (c *Collector) RecordRequest(method, path string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAuthcheck records an authcheck evaluation
func (c *Collector) RecordAuthcheck(verdict, route string) {
	AuthcheckTotal.WithLabelValues(verdict, route).Inc()
}

// RecordLogin records a login attempt
func (c *Collector) RecordLogin(success bool) {
	LoginTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordCredentialValidation records a session credential validation
func (c *Collector) RecordCredentialValidation(success bool) {
	CredentialValidationTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordUpstreamRequest records a request proxied to the upstream
func (c *Collector) RecordUpstreamRequest(method string, status int, duration time.Duration) {
	UpstreamRequestTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	UpstreamRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
