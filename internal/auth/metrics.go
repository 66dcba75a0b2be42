// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for operation metrics.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
	ResultError    = "error"
)

// Operations counts orchestrator operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_auth_operations_total",
		Help: "Total number of authentication operations",
	},
	[]string{"operation", "result"},
)

// SessionsSwept counts sessions removed by expiry sweeps.
var SessionsSwept = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "gatekeeper_sessions_swept_total",
	Help: "Total number of expired sessions deleted",
})

// AuditFailures counts audit entries that could not be written.
var AuditFailures = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "gatekeeper_audit_failures_total",
	Help: "Total number of audit entries that failed to persist",
})

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// The tracker gauge reports the live authenticated count at scrape time.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer, tracker *Tracker) {
	reg.MustRegister(Operations)
	reg.MustRegister(SessionsSwept)
	reg.MustRegister(AuditFailures)
	if tracker != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gatekeeper_authenticated_identities",
			Help: "Current number of authenticated connections",
		}, func() float64 { return float64(tracker.Count()) }))
	}
}

func recordOperation(operation, result string) {
	Operations.WithLabelValues(operation, result).Inc()
}
