// Package metrics exposes Prometheus counters for login, request
// authentication and route policy outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the auth counters and the registry they are registered with.
// All Observe methods are safe to call on a nil *Metrics.
type Metrics struct {
	// LoginsTotal counts login attempts by method ("password" or provider name) and outcome.
	LoginsTotal *prometheus.CounterVec

	// AuthenticationsTotal counts per-request identity resolution outcomes.
	AuthenticationsTotal *prometheus.CounterVec

	// PolicyDecisionsTotal counts route policy evaluations by access and result.
	PolicyDecisionsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the counters on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewMetrics(reg)
	m.registry = reg
	return m
}

// NewMetrics creates the counters and registers them with reg.
// Panics if registration fails.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aspira_auth_logins_total",
				Help: "Login attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		AuthenticationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aspira_auth_request_authentications_total",
				Help: "Request identity resolution outcomes",
			},
			[]string{"outcome"},
		),
		PolicyDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aspira_auth_policy_decisions_total",
				Help: "Route access policy decisions by access level and result",
			},
			[]string{"access", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.LoginsTotal, m.AuthenticationsTotal, m.PolicyDecisionsTotal)
	}
	return m
}

// ObserveLogin records a login attempt.
func (m *Metrics) ObserveLogin(method, outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(method, outcome).Inc()
}

// ObserveAuthentication records the outcome of resolving a request's identity.
func (m *Metrics) ObserveAuthentication(outcome string) {
	if m == nil {
		return
	}
	m.AuthenticationsTotal.WithLabelValues(outcome).Inc()
}

// ObservePolicyDecision records a route policy evaluation.
func (m *Metrics) ObservePolicyDecision(access string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.PolicyDecisionsTotal.WithLabelValues(access, result).Inc()
}

// Handler serves the registry created by New in the Prometheus text format.
// Metrics built with NewMetrics serve the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
