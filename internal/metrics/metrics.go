// Package metrics exposes Prometheus counters for the login gate.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login steps.
const (
	StepPassword   = "password"
	StepTOTP       = "totp"
	StepOAuth      = "oauth"
	StepEnrollment = "enrollment"
	StepRecovery   = "recovery"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Metrics holds the gate's collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	signups  *prometheus.CounterVec
	purged   prometheus.Counter
}

// New creates the collectors and registers them together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dipgate",
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by login step and outcome.",
		}, []string{"step", "outcome"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dipgate",
			Name:      "signups_total",
			Help:      "Signup submissions by outcome.",
		}, []string{"outcome"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dipgate",
			Name:      "purged_registrations_total",
			Help:      "Unconfirmed registrations removed by the purge job.",
		}),
	}

	reg.MustRegister(
		m.attempts,
		m.signups,
		m.purged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// AuthAttempt counts one attempt at a login step.
func (m *Metrics) AuthAttempt(step, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(step, outcome).Inc()
}

// Signup counts one signup submission.
func (m *Metrics) Signup(outcome string) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(outcome).Inc()
}

// RegistrationsPurged adds n removed registrations.
func (m *Metrics) RegistrationsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
