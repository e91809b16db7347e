package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet inventory metrics
	ResourcesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsched_resources_total",
			Help: "Total number of tagged resources by kind and stored registry state",
		},
		[]string{"kind", "state"},
	)

	SchedulesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsched_schedules_total",
			Help: "Total number of schedules in the library",
		},
	)

	PeriodsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsched_periods_total",
			Help: "Total number of periods in the library",
		},
	)

	// Raft metrics (leader election)
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsched_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsched_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsched_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetsched_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// Orchestration metrics
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsched_tick_duration_seconds",
			Help:    "Time taken for one fleet-wide scheduling tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_ticks_total",
			Help: "Total number of scheduling ticks completed, by result",
		},
		[]string{"result"},
	)

	TargetsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsched_targets_total",
			Help: "Number of (account, region, service) targets enumerated for the current tick",
		},
		[]string{"service"},
	)

	// Per-target scheduler metrics
	ReconciliationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetsched_reconciliation_duration_seconds",
			Help:    "Time taken for a per-target reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	ReconciliationCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_reconciliation_cycles_total",
			Help: "Total number of per-target reconciliation cycles completed",
		},
		[]string{"service"},
	)

	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_actions_total",
			Help: "Total number of start/stop/resize actions attempted, by kind, action, and result",
		},
		[]string{"kind", "action", "result"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetsched_action_duration_seconds",
			Help:    "Time taken to perform a start/stop/resize call in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "action"},
	)

	// Retry and resilience metrics
	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_retry_attempts_total",
			Help: "Total number of retry attempts made",
		},
		[]string{"outcome"},
	)

	BisectIsolatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsched_bisect_isolated_total",
			Help: "Total number of resource ids isolated by the bisect-retry batch splitter",
		},
	)

	BreakerStateChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_breaker_state_changes_total",
			Help: "Total number of circuit breaker state transitions, by partition and new state",
		},
		[]string{"partition", "state"},
	)

	// Maintenance window metrics
	MaintenanceWindowCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsched_maintenance_window_cache_total",
			Help: "Total number of maintenance window cache lookups, by outcome",
		},
		[]string{"outcome"},
	)

	// Usage accounting metrics
	UsageComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsched_usage_compute_duration_seconds",
			Help:    "Time taken to compute a usage report for one schedule and date range",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ResourcesTotal)
	prometheus.MustRegister(SchedulesTotal)
	prometheus.MustRegister(PeriodsTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(TargetsTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(BisectIsolatedTotal)
	prometheus.MustRegister(BreakerStateChanges)
	prometheus.MustRegister(MaintenanceWindowCacheHits)
	prometheus.MustRegister(UsageComputeDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
