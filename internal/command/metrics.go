// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for command execution metrics.
const (
	StatusSuccess          = "success"
	StatusError            = "error"
	StatusNotFound         = "not_found"
	StatusPermissionDenied = "permission_denied"
	StatusThrottled        = "throttled"
)

// CommandExecutions is the counter for command executions.
// Use RegisterMetrics to register this with a Prometheus registry.
var CommandExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_command_executions_total",
		Help: "Total number of command executions",
	},
	[]string{"command", "status"},
)

// CommandDuration is the histogram for command execution duration.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gatekeeper_command_duration_seconds",
		Help:    "Command execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"command"},
)

// CommandThrottled counts commands rejected by the throttle.
var CommandThrottled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_command_throttled_total",
		Help: "Total number of commands rejected by the per-identity throttle",
	},
	[]string{"command"},
)

// AliasExpansions is the counter for alias expansions.
var AliasExpansions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatekeeper_alias_expansions_total",
		Help: "Total number of alias expansions",
	},
	[]string{"alias"},
)

// RegisterMetrics registers command package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CommandExecutions, CommandDuration, CommandThrottled, AliasExpansions)
}

// RecordCommandExecution increments the command execution counter.
func RecordCommandExecution(command, status string) {
	CommandExecutions.WithLabelValues(command, status).Inc()
}

// RecordCommandDuration records the duration of a command execution.
func RecordCommandDuration(command string, duration time.Duration) {
	CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordCommandThrottled increments the throttled counter.
func RecordCommandThrottled(command string) {
	CommandThrottled.WithLabelValues(command).Inc()
}

// RecordAliasExpansion increments the alias expansion counter.
func RecordAliasExpansion(alias string) {
	AliasExpansions.WithLabelValues(alias).Inc()
}
