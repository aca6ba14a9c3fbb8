// Package metrics declares the scheduler's Prometheus collectors, the same
// package-level-vars-plus-All() shape wisbric-nightowl's internal/telemetry
// uses, generalized from alert-pipeline counters to solve/snapshot
// counters.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// SolveDuration records how long each optimizer.Run call takes, labeled by
// outcome so infeasible/failed runs don't skew the latency distribution of
// successful ones.
var SolveDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "scheduler",
		Subsystem: "solver",
		Name:      "solve_duration_seconds",
		Help:      "Time spent building and solving the monthly assignment model.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"outcome"},
)

// SolveInfeasibleTotal counts runs where the solver proved no feasible
// assignment exists (§4.4).
var SolveInfeasibleTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "scheduler",
		Subsystem: "solver",
		Name:      "infeasible_total",
		Help:      "Total number of solve requests that proved infeasible.",
	},
)

// SolveFailureTotal counts runs where the solver terminated without an
// optimal or infeasible result (timeout, internal error).
var SolveFailureTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "scheduler",
		Subsystem: "solver",
		Name:      "failure_total",
		Help:      "Total number of solve requests that failed to terminate with a result.",
	},
)

// SnapshotReuseTotal counts (person, duty) stats rows a promote (§4.5)
// reused by reference instead of recomputing fresh.
var SnapshotReuseTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "scheduler",
		Subsystem: "snapshot",
		Name:      "reused_total",
		Help:      "Total number of stats snapshot rows reused by reference during promotion.",
	},
)

// SnapshotFreshTotal counts (person, duty) stats rows a promote computed
// fresh: every pair the promoted version assigned, plus every other
// eligible pair for which no snapshot row existed yet.
var SnapshotFreshTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "scheduler",
		Subsystem: "snapshot",
		Name:      "fresh_total",
		Help:      "Total number of stats snapshot rows computed fresh during promotion.",
	},
)

// All returns every scheduler-specific collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		SolveDuration,
		SolveInfeasibleTotal,
		SolveFailureTotal,
		SnapshotReuseTotal,
		SnapshotFreshTotal,
	}
}
