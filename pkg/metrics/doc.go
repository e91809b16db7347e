/*
Package metrics provides Prometheus metrics collection and exposition for
fleetsched.

The metrics package defines and registers every fleetsched metric using
the Prometheus client library, giving observability into fleet inventory,
tick timing, per-target scheduling outcomes, retry/circuit-breaker
behavior, and leader election. Metrics are exposed via an HTTP endpoint
for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │  Fleet inventory: resources, schedules,     │          │
	│  │    periods, targets                         │          │
	│  │  Orchestration: tick duration, tick count   │          │
	│  │  Per-target: reconciliation duration/count, │          │
	│  │    action duration/count                    │          │
	│  │  Resilience: retry attempts, breaker trips, │          │
	│  │    bisect isolations                        │          │
	│  │  Maintenance windows: cache hit/miss        │          │
	│  │  Usage accounting: compute duration         │          │
	│  │  Raft: leadership, log index, peer count    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: metrics.Handler()               │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Fleet inventory:

  - fleetsched_resources_total{kind,state}: tagged resources by kind and
    stored registry state (Gauge)
  - fleetsched_schedules_total: number of schedules in the loaded library,
    set by Collector (Gauge)
  - fleetsched_periods_total: registered, but not set by any package in
    this module (Gauge)
  - fleetsched_targets_total{service}: (account, region, service) targets
    enumerated for the current tick (Gauge)

Orchestration:

  - fleetsched_tick_duration_seconds: one fleet-wide tick (Histogram)
  - fleetsched_ticks_total{result}: ticks completed by result (Counter)

Per-target scheduling:

  - fleetsched_reconciliation_duration_seconds{service}: one per-target
    worker cycle (Histogram)
  - fleetsched_reconciliation_cycles_total{service}: worker cycles
    completed (Counter)
  - fleetsched_actions_total{kind,action,result}: start/stop/resize calls
    attempted (Counter)
  - fleetsched_action_duration_seconds{kind,action}: cloud API call
    latency (Histogram)

Resilience:

  - fleetsched_retry_attempts_total{outcome}: retry attempts (Counter)
  - fleetsched_bisect_isolated_total: resource ids isolated by the
    bisect-retry batch splitter (Counter)
  - fleetsched_breaker_state_changes_total{partition,state}: circuit
    breaker transitions (Counter)

Maintenance windows and usage:

  - fleetsched_maintenance_window_cache_total{outcome}: cache lookups
    (Counter)
  - fleetsched_usage_compute_duration_seconds: one usage report
    computation (Histogram)

Raft (leader election):

  - fleetsched_raft_is_leader, fleetsched_raft_peers_total,
    fleetsched_raft_log_index, fleetsched_raft_applied_index (Gauge)

# Usage

	import "github.com/cuemby/fleetsched/pkg/metrics"

	metrics.TargetsTotal.WithLabelValues("ec2").Set(12)
	metrics.TicksTotal.WithLabelValues("success").Inc()

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.TickDuration)

	http.Handle("/metrics", metrics.Handler())

# Integration Points

This package integrates with:

  - pkg/orchestrator: tick duration, tick count, target counts
  - pkg/targetsched, pkg/asgsched: reconciliation and action metrics
  - pkg/targetsched: bisect isolations
  - pkg/usage: usage computation duration
  - pkg/leader: Raft gauges, refreshed by Collector on a fixed interval
  - Prometheus: scrapes /metrics

fleetsched_retry_attempts_total, fleetsched_breaker_state_changes_total,
fleetsched_maintenance_window_cache_total and fleetsched_periods_total
are registered but no package in this module updates them; pkg/retry
and pkg/maintenance do not import this package.

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate
    registration, so a forgotten metric fails loudly at startup.

Label Discipline:
  - Labels are bounded (resource kind, action, service, result) — never
    a resource id or timestamp — to keep cardinality low.

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
