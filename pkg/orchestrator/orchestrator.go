/*
Package orchestrator drives one fleet-wide scheduling tick:
load the schedule/period library, enumerate (account, region, service)
targets, dispatch one worker per target, and aggregate results without
ever letting a single worker's failure fail the tick.
*/
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/fleetsched/pkg/asgsched"
	"github.com/cuemby/fleetsched/pkg/cloud"
	"github.com/cuemby/fleetsched/pkg/leader"
	"github.com/cuemby/fleetsched/pkg/log"
	"github.com/cuemby/fleetsched/pkg/metrics"
	"github.com/cuemby/fleetsched/pkg/retry"
	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/storage"
	"github.com/cuemby/fleetsched/pkg/targetsched"
	"github.com/cuemby/fleetsched/pkg/types"
)

// Config is the operator-supplied fan-out policy: the fleet's enabled
// services, accounts, and regions, the worker pool size, the payload
// threshold, and the per-resource policy each dispatched worker enforces.
type Config struct {
	// Services restricts the cross product to the worker kinds this
	// deployment runs. KindRDSInstance stands for "the RDS worker",
	// which discovers both standalone instances and clusters in one
	// pass — there is no separate KindRDSCluster target.
	Services []types.ResourceKind
	Accounts []string
	Regions  []string

	Concurrency           int
	PayloadThresholdBytes int

	TargetSched targetsched.Config
	ASGSched    asgsched.Config
	Window      schedule.MaintenanceWindowChecker
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 16
	}
	if c.PayloadThresholdBytes <= 0 {
		c.PayloadThresholdBytes = DefaultPayloadThresholdBytes
	}
	return c
}

// Orchestrator is the single-coordinator tick driver. When elector is
// non-nil, Tick is a no-op on any replica that isn't the current Raft
// leader, so a multi-replica deployment only ever runs one tick at a time.
type Orchestrator struct {
	cfg      Config
	store    storage.Store
	identity cloud.IdentityBroker
	breakers *retry.BreakerRegistry
	elector  *leader.Node
	logger   zerolog.Logger
}

// New builds an Orchestrator. elector may be nil for a standalone
// (single-replica) deployment, which is then always considered leader.
func New(cfg Config, store storage.Store, identity cloud.IdentityBroker, breakers *retry.BreakerRegistry, elector *leader.Node) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg.withDefaults(),
		store:    store,
		identity: identity,
		breakers: breakers,
		elector:  elector,
		logger:   log.WithComponent("orchestrator"),
	}
}

type targetResult struct {
	target         types.ResourceTarget
	resourceErrors []error
	err            error
}

// Tick runs one fleet-wide cycle. It returns an error only when the
// library itself could not be loaded; individual worker failures are
// collected, logged, counted, and never propagated as a tick failure.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) error {
	if o.elector != nil && !o.elector.IsLeader() {
		o.logger.Debug().Msg("not the elected leader, skipping tick")
		return nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TickDuration)

	lib, schedules, periods, err := o.loadLibrary()
	if err != nil {
		metrics.TicksTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("orchestrator: load schedule library: %w", err)
	}

	targets := o.enumerateTargets()
	o.recordTargetCounts(targets)

	group := new(errgroup.Group)
	group.SetLimit(o.cfg.Concurrency)
	results := make(chan targetResult, len(targets))

	for _, target := range targets {
		target := target
		group.Go(func() error {
			results <- o.runTarget(ctx, target, lib, schedules, periods, now)
			return nil
		})
	}
	_ = group.Wait()
	close(results)

	failedTargets := 0
	for r := range results {
		logCtx := o.logger.With().
			Str("account", r.target.Account).
			Str("region", r.target.Region).
			Str("service", string(r.target.Service)).
			Logger()
		if r.err != nil {
			failedTargets++
			logCtx.Error().Err(r.err).Msg("worker failed")
			continue
		}
		for _, werr := range r.resourceErrors {
			logCtx.Warn().Err(werr).Msg("resource-level error")
		}
	}

	metrics.TicksTotal.WithLabelValues("success").Inc()
	o.logger.Info().
		Int("targets", len(targets)).
		Int("failed_targets", failedTargets).
		Msg("tick complete")
	return nil
}

func (o *Orchestrator) loadLibrary() (*schedule.Library, []*types.Schedule, []*types.Period, error) {
	schedules, err := o.store.ListSchedules()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list schedules: %w", err)
	}
	periods, err := o.store.ListPeriods()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list periods: %w", err)
	}
	lib, diagnostics := schedule.NewLibrary(periods, schedules)
	for _, d := range diagnostics {
		o.logger.Warn().Err(d).Msg("schedule definition rejected from this tick's view")
	}
	return lib, schedules, periods, nil
}

func (o *Orchestrator) enumerateTargets() []types.ResourceTarget {
	targets := make([]types.ResourceTarget, 0, len(o.cfg.Services)*len(o.cfg.Accounts)*len(o.cfg.Regions))
	for _, svc := range o.cfg.Services {
		for _, account := range o.cfg.Accounts {
			for _, region := range o.cfg.Regions {
				targets = append(targets, types.ResourceTarget{Account: account, Region: region, Service: svc})
			}
		}
	}
	return targets
}

func (o *Orchestrator) recordTargetCounts(targets []types.ResourceTarget) {
	counts := make(map[types.ResourceKind]int)
	for _, t := range targets {
		counts[t.Service]++
	}
	for svc, n := range counts {
		metrics.TargetsTotal.WithLabelValues(string(svc)).Set(float64(n))
	}
}

func (o *Orchestrator) runTarget(ctx context.Context, target types.ResourceTarget, lib *schedule.Library, schedules []*types.Schedule, periods []*types.Period, now time.Time) targetResult {
	req := &workerRequest{Target: target, Schedules: schedules, Periods: periods}
	reload, err := fitToThreshold(req, o.cfg.PayloadThresholdBytes)
	if err != nil {
		return targetResult{target: target, err: fmt.Errorf("encode worker request: %w", err)}
	}
	if reload {
		o.logger.Debug().
			Str("account", target.Account).
			Str("region", target.Region).
			Str("service", string(target.Service)).
			Msg("worker request exceeds payload threshold even stripped to empty, worker relies on the store directly")
	}

	role, err := o.identity.AssumeRole(ctx, target.Account, target.Region)
	if err != nil {
		return targetResult{target: target, err: fmt.Errorf("assume role: %w", err)}
	}

	var (
		resourceErrors []error
		runErr         error
	)
	switch target.Service {
	case types.KindEC2Instance:
		w := targetsched.NewEC2Worker(o.cfg.TargetSched, role.Compute(), o.store, lib, o.cfg.Window, o.breakers, target.Account, target.Region)
		resourceErrors, runErr = w.Run(ctx, now)
	case types.KindRDSInstance:
		w := targetsched.NewRDSWorker(o.cfg.TargetSched, role.Database(), o.store, lib, o.cfg.Window, o.breakers, target.Account, target.Region)
		resourceErrors, runErr = w.Run(ctx, now)
	case types.KindAutoScaling:
		w := asgsched.NewWorker(o.cfg.ASGSched, role.ASG(), o.store, lib, o.breakers, target.Account, target.Region)
		resourceErrors, runErr = w.Run(ctx, now)
	default:
		runErr = fmt.Errorf("unsupported target service %q", target.Service)
	}
	return targetResult{target: target, resourceErrors: resourceErrors, err: runErr}
}
