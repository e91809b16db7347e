package targetsched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/fleetsched/pkg/cloud"
	"github.com/cuemby/fleetsched/pkg/log"
	"github.com/cuemby/fleetsched/pkg/metrics"
	"github.com/cuemby/fleetsched/pkg/retry"
	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/storage"
	"github.com/cuemby/fleetsched/pkg/types"
)

// Config is the operator-configured policy shared by every per-target
// worker: the tag key binding a resource to a schedule, the post-action
// tag sets, and the retry posture around every cloud call.
type Config struct {
	ScheduleTagKey string
	Tags           TagPolicy
	Backoff        retry.BackoffConfig
	IsTransient    retry.Retryable

	// HibernateUnsupported classifies a failed hibernate call as "this
	// instance isn't configured for hibernation" (provider-specific,
	// e.g. EC2's UnsupportedHibernationConfiguration) versus any other
	// failure. Only EC2Worker consults it.
	HibernateUnsupported retry.Retryable

	// EnableRDSSnapshots and StackName govern RDSWorker's pre-stop
	// snapshot; both are ignored by EC2Worker and the ASG scheduler.
	EnableRDSSnapshots bool
	StackName          string
}

// candidate is one resource carried from the enumeration pass through to
// the batch-dispatch pass.
type candidate struct {
	resource types.ResourceRuntimeInfo
	decision Decision
}

// EC2Worker runs one reconciliation cycle of the per-resource decision
// procedure against every EC2 instance tagged in one (account, region)
// partition.
type EC2Worker struct {
	cfg      Config
	compute  cloud.ComputeService
	store    storage.Store
	lib      *schedule.Library
	window   schedule.MaintenanceWindowChecker
	breakers *retry.BreakerRegistry
	account  string
	region   string
	logger   zerolog.Logger
}

// NewEC2Worker builds a worker bound to one assumed-role compute client.
func NewEC2Worker(cfg Config, compute cloud.ComputeService, store storage.Store, lib *schedule.Library, window schedule.MaintenanceWindowChecker, breakers *retry.BreakerRegistry, account, region string) *EC2Worker {
	return &EC2Worker{
		cfg:      cfg,
		compute:  compute,
		store:    store,
		lib:      lib,
		window:   window,
		breakers: breakers,
		account:  account,
		region:   region,
		logger:   log.WithAccount(account).With().Str("region", region).Str("service", "ec2").Logger(),
	}
}

// Run enumerates tagged instances, evaluates desired state for each, and
// dispatches the resulting start/stop/resize actions in batches. It never
// aborts on a single resource's failure; errors are collected and returned
// alongside a nil error reserved for enumeration-level failures.
func (w *EC2Worker) Run(ctx context.Context, now time.Time) ([]error, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.ReconciliationDuration, "ec2")
		metrics.ReconciliationCyclesTotal.WithLabelValues("ec2").Inc()
	}()

	var candidates []candidate
	var resourceErrors []error
	seen := make(map[string]struct{})

	err := w.compute.DescribeTagged(ctx, w.cfg.ScheduleTagKey, func(r types.ResourceRuntimeInfo) error {
		if r.State == types.ObservedTerminated {
			if delErr := w.store.DeleteRegistryRecord(w.account, w.region, string(types.KindEC2Instance), r.ID); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
				w.logger.Warn().Err(delErr).Str("resource_id", r.ID).Msg("failed to delete registry record for terminated instance")
			}
			return nil
		}
		seen[r.ID] = struct{}{}

		sched, ok := w.lib.Schedule(r.ScheduleName)
		if !ok {
			resourceErrors = append(resourceErrors, &types.ResourceError{
				ResourceID: r.ID,
				Kind:       types.KindUnknownSchedule,
				Err:        fmt.Errorf("instance tagged with unknown schedule %q", r.ScheduleName),
			})
			return nil
		}

		desired, err := schedule.Evaluate(w.lib, sched, now, w.window)
		if err != nil {
			resourceErrors = append(resourceErrors, &types.ResourceError{ResourceID: r.ID, Kind: types.KindDefinitionInvalid, Err: err})
			return nil
		}

		last := types.StoredUnknown
		if rec, err := w.store.GetRegistryRecord(w.account, w.region, string(types.KindEC2Instance), r.ID); err == nil {
			last = rec.StoredState
		} else if !errors.Is(err, storage.ErrNotFound) {
			resourceErrors = append(resourceErrors, &types.ResourceError{ResourceID: r.ID, Kind: types.KindClientException, Err: err})
			return nil
		}

		candidates = append(candidates, candidate{resource: r, decision: Decide(last, desired, sched, &r)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("targetsched: enumerate ec2 instances: %w", err)
	}

	resourceErrors = append(resourceErrors, w.dispatch(ctx, candidates)...)

	if sweepErr := sweepLegacy(w.store, string(types.KindEC2Instance), w.account, w.region, seen); sweepErr != nil {
		w.logger.Warn().Err(sweepErr).Msg("legacy desired-state sweep failed")
	}

	w.logger.Info().Int("resources", len(candidates)).Int("errors", len(resourceErrors)).Msg("reconciliation cycle complete")
	return resourceErrors, nil
}

func (w *EC2Worker) dispatch(ctx context.Context, candidates []candidate) []error {
	var errs []error

	toStart := make([]candidate, 0, len(candidates))
	var stopIDs, hibernateIDs []string
	byID := make(map[string]candidate, len(candidates))

	for _, c := range candidates {
		byID[c.resource.ID] = c
		switch c.decision.Action {
		case types.ActionStart:
			toStart = append(toStart, c)
		case types.ActionStop:
			stopIDs = append(stopIDs, c.resource.ID)
		case types.ActionHibernate:
			hibernateIDs = append(hibernateIDs, c.resource.ID)
		default:
			w.persist(c.resource.ID, c.decision.NewStoredState)
		}
	}

	startIDs := make([]string, 0, len(toStart))
	for _, c := range toStart {
		if c.decision.ResizeTo == "" {
			startIDs = append(startIDs, c.resource.ID)
			continue
		}
		if err := w.resize(ctx, c.resource.ID, c.decision.ResizeTo); err != nil {
			errs = append(errs, &types.ResourceError{ResourceID: c.resource.ID, Kind: types.KindClientException, Err: err})
			continue
		}
		startIDs = append(startIDs, c.resource.ID)
	}

	failed := make(map[string]struct{})
	for id := range w.dispatchBatch(ctx, types.ActionStart, startIDs, func(ctx context.Context, ids []string) error {
		return w.compute.Start(ctx, ids)
	}) {
		failed[id] = struct{}{}
	}
	for id := range w.dispatchBatch(ctx, types.ActionStop, stopIDs, func(ctx context.Context, ids []string) error {
		return w.compute.Stop(ctx, ids, false)
	}) {
		failed[id] = struct{}{}
	}

	hibernateFailures := w.dispatchBatch(ctx, types.ActionHibernate, hibernateIDs, func(ctx context.Context, ids []string) error {
		return w.compute.Stop(ctx, ids, true)
	})

	// A hibernate failure whose code means "this instance isn't
	// configured for hibernation" falls back to a normal stop
	// transparently, reported as action_taken=stop rather than a
	// resource error.
	var retryAsStop []string
	for id, hibernateErr := range hibernateFailures {
		if w.cfg.HibernateUnsupported != nil && w.cfg.HibernateUnsupported(hibernateErr) {
			w.logger.Warn().Str("resource_id", id).Msg("instance not configured for hibernation, falling back to a normal stop")
			retryAsStop = append(retryAsStop, id)
			continue
		}
		failed[id] = struct{}{}
	}

	if len(retryAsStop) > 0 {
		for id := range w.dispatchBatch(ctx, types.ActionStop, retryAsStop, func(ctx context.Context, ids []string) error {
			return w.compute.Stop(ctx, ids, false)
		}) {
			failed[id] = struct{}{}
		}
		for _, id := range retryAsStop {
			c := byID[id]
			c.decision.Action = types.ActionStop
			byID[id] = c
		}
	}

	for _, ids := range [][]string{startIDs, stopIDs, hibernateIDs} {
		for _, id := range ids {
			c := byID[id]
			if _, bad := failed[id]; bad {
				errs = append(errs, &types.ResourceError{ResourceID: id, Kind: types.KindClientException, Err: fmt.Errorf("batch action failed after bisect isolation")})
				w.persist(id, types.StoredError)
				continue
			}
			w.persist(id, c.decision.NewStoredState)
			w.reconcileTags(ctx, id, c.decision.Action)
		}
	}
	return errs
}

// dispatchBatch wraps one batch action in the bisect-retry/circuit-breaker/
// backoff stack and returns the per-id errors for ids that ultimately
// failed (empty/nil if every id in the batch succeeded).
func (w *EC2Worker) dispatchBatch(ctx context.Context, action types.RequestedAction, ids []string, call func(ctx context.Context, ids []string) error) map[string]error {
	if len(ids) == 0 {
		return nil
	}
	timer := metrics.NewTimer()
	key := retry.BreakerKey{Account: w.account, Region: w.region, Service: string(types.KindEC2Instance)}
	failures := retry.Bisect(ids, func(batch []string) error {
		return w.breakers.Execute(ctx, key, func() error {
			return retry.WithBackoff(ctx, w.cfg.Backoff, w.cfg.IsTransient, func(ctx context.Context) error {
				return call(ctx, batch)
			})
		})
	})
	timer.ObserveDurationVec(metrics.ActionDuration, string(types.KindEC2Instance), string(action))

	succeeded := len(ids) - len(failures)
	if succeeded > 0 {
		metrics.ActionsTotal.WithLabelValues(string(types.KindEC2Instance), string(action), "success").Add(float64(succeeded))
	}
	if len(failures) == 0 {
		return nil
	}
	metrics.ActionsTotal.WithLabelValues(string(types.KindEC2Instance), string(action), "failure").Add(float64(len(failures)))
	metrics.BisectIsolatedTotal.Add(float64(len(failures)))
	return failures
}

func (w *EC2Worker) resize(ctx context.Context, id, instanceType string) error {
	return w.breakers.Execute(ctx, retry.BreakerKey{Account: w.account, Region: w.region, Service: string(types.KindEC2Instance)}, func() error {
		return retry.WithBackoff(ctx, w.cfg.Backoff, w.cfg.IsTransient, func(ctx context.Context) error {
			return w.compute.ModifyType(ctx, id, instanceType)
		})
	})
}

func (w *EC2Worker) persist(id string, state types.StoredState) {
	rec := &types.RegistryRecord{
		Account:     w.account,
		Region:      w.region,
		Service:     string(types.KindEC2Instance),
		ResourceID:  id,
		StoredState: state,
		UpdatedAt:   time.Now(),
	}
	if err := w.store.PutRegistryRecord(rec); err != nil {
		w.logger.Error().Err(err).Str("resource_id", id).Msg("failed to persist registry record")
	}
}

func (w *EC2Worker) reconcileTags(ctx context.Context, id string, action types.RequestedAction) {
	add, remove := w.cfg.Tags.Reconcile(action)
	if len(add) > 0 {
		if err := w.compute.CreateTags(ctx, []string{id}, add); err != nil {
			w.logger.Warn().Err(err).Str("resource_id", id).Msg("failed to add post-action tags")
		}
	}
	if len(remove) > 0 {
		if err := w.compute.DeleteTags(ctx, []string{id}, remove); err != nil {
			w.logger.Warn().Err(err).Str("resource_id", id).Msg("failed to remove post-action tags")
		}
	}
}
