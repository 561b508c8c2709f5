package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/storefront-session/internal/domain"
)

// Refresh and login outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport_error"
	OutcomeMismatch  = "role_mismatch"
	OutcomeShared    = "shared"
)

// Metrics holds the gateway's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	refresh  *prometheus.CounterVec
	logins   *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewMetrics registers collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_upstream_requests_total",
			Help: "Upstream business requests by domain, method and status.",
		}, []string{"domain", "method", "status"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_refresh_total",
			Help: "Credential refresh cycles by domain and outcome.",
		}, []string{"domain", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_login_total",
			Help: "Login attempts by domain and outcome.",
		}, []string{"domain", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_errors_total",
			Help: "Gateway error responses by path, method and code.",
		}, []string{"path", "method", "code"}),
	}
	m.registry.MustRegister(m.requests, m.refresh, m.logins, m.errors)
	return m
}

// RecordRequest counts an upstream request.
func (m *Metrics) RecordRequest(d domain.Domain, method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(d), method, strconv.Itoa(status)).Inc()
}

// RecordRefresh counts a refresh cycle outcome.
func (m *Metrics) RecordRefresh(d domain.Domain, outcome string) {
	if m == nil {
		return
	}
	m.refresh.WithLabelValues(string(d), outcome).Inc()
}

// RecordLogin counts a login outcome.
func (m *Metrics) RecordLogin(d domain.Domain, outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(string(d), outcome).Inc()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
