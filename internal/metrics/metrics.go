// Package metrics declares the Prometheus collectors for conversation turns.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomeRejected = "rejected"
	OutcomeFallback = "fallback"
	OutcomeUnsaved  = "unsaved"
)

var (
	// TurnsTotal counts turns by outcome.
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_turns_total",
		Help: "Conversation turns by outcome",
	}, []string{"outcome"})

	// TurnDuration tracks end-to-end turn latency including persistence.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_turn_duration_seconds",
		Help:    "Turn duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	})

	// ToolInvocations counts tool calls by tool and status.
	ToolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_tool_invocations_total",
		Help: "Tool invocations by tool and status",
	}, []string{"tool", "status"})

	// Handoffs counts agent transfers by edge.
	Handoffs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_handoffs_total",
		Help: "Agent handoffs by source and target",
	}, []string{"from", "to"})

	// EngineFailures counts reasoning engine failures by engine.
	EngineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_engine_failures_total",
		Help: "Reasoning engine failures by engine",
	}, []string{"engine"})

	// SaveRetries counts session save attempts that had to be retried.
	SaveRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "planner_session_save_retries_total",
		Help: "Session save attempts retried after a storage failure",
	})

	// PendingSessions is the number of sessions held in memory awaiting a successful save.
	PendingSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planner_pending_sessions",
		Help: "Sessions held in memory after a failed save",
	})
)
