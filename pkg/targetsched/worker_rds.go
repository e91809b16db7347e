package targetsched

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// RDSWorker is the RDS counterpart of EC2Worker. RDS has no batch
// start/stop API, so resources are processed serially instead of fanned
// out through the bisect-retry batch splitter.
type RDSWorker struct {
	cfg      Config
	db       cloud.DatabaseService
	store    storage.Store
	lib      *schedule.Library
	window   schedule.MaintenanceWindowChecker
	breakers *retry.BreakerRegistry
	account  string
	region   string
	logger   zerolog.Logger
}

func NewRDSWorker(cfg Config, db cloud.DatabaseService, store storage.Store, lib *schedule.Library, window schedule.MaintenanceWindowChecker, breakers *retry.BreakerRegistry, account, region string) *RDSWorker {
	return &RDSWorker{
		cfg:      cfg,
		db:       db,
		store:    store,
		lib:      lib,
		window:   window,
		breakers: breakers,
		account:  account,
		region:   region,
		logger:   log.WithAccount(account).With().Str("region", region).Str("service", "rds").Logger(),
	}
}

func (w *RDSWorker) Run(ctx context.Context, now time.Time) ([]error, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.ReconciliationDuration, "rds")
		metrics.ReconciliationCyclesTotal.WithLabelValues("rds").Inc()
	}()

	var instanceARNs, clusterARNs []string
	err := w.db.DescribeTaggedARNs(ctx, w.cfg.ScheduleTagKey, func(arn string) error {
		if isClusterARN(arn) {
			clusterARNs = append(clusterARNs, arn)
		} else {
			instanceARNs = append(instanceARNs, arn)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("targetsched: enumerate rds resources: %w", err)
	}

	instances, err := w.db.DescribeInstances(ctx, instanceARNs)
	if err != nil {
		return nil, fmt.Errorf("targetsched: describe rds instances: %w", err)
	}
	clusters, err := w.db.DescribeClusters(ctx, clusterARNs)
	if err != nil {
		return nil, fmt.Errorf("targetsched: describe rds clusters: %w", err)
	}

	var resourceErrors []error
	seen := make(map[string]struct{})
	for _, r := range append(instances, clusters...) {
		if errs := w.processOne(ctx, r, now); errs != nil {
			resourceErrors = append(resourceErrors, errs)
		}
		seen[r.ID] = struct{}{}
	}

	if sweepErr := sweepLegacy(w.store, "rds", w.account, w.region, seen); sweepErr != nil {
		w.logger.Warn().Err(sweepErr).Msg("legacy desired-state sweep failed")
	}

	w.logger.Info().Int("resources", len(seen)).Int("errors", len(resourceErrors)).Msg("reconciliation cycle complete")
	return resourceErrors, nil
}

func (w *RDSWorker) processOne(ctx context.Context, r types.ResourceRuntimeInfo, now time.Time) error {
	service := string(types.KindRDSInstance)
	if r.IsCluster {
		service = string(types.KindRDSCluster)
	}

	if r.State == types.ObservedTerminated {
		if err := w.store.DeleteRegistryRecord(w.account, w.region, service, r.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			w.logger.Warn().Err(err).Str("resource_id", r.ID).Msg("failed to delete registry record for deleted rds resource")
		}
		return nil
	}

	if r.Unsupported {
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindUnsupportedResource, Err: errors.New(r.UnsupportedReason)}
	}

	scheduleName := r.Tags[w.cfg.ScheduleTagKey]
	sched, ok := w.lib.Schedule(scheduleName)
	if !ok {
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindUnknownSchedule, Err: fmt.Errorf("rds resource tagged with unknown schedule %q", scheduleName)}
	}

	desired, err := schedule.Evaluate(w.lib, sched, now, w.window)
	if err != nil {
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindDefinitionInvalid, Err: err}
	}

	last := types.StoredUnknown
	if rec, err := w.store.GetRegistryRecord(w.account, w.region, service, r.ID); err == nil {
		last = rec.StoredState
	} else if !errors.Is(err, storage.ErrNotFound) {
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindClientException, Err: err}
	}

	decision := Decide(last, desired, sched, &r)

	if resizeErr := w.maybeResize(ctx, r, decision, service); resizeErr != nil {
		return resizeErr
	}

	if actErr := w.act(ctx, r, decision.Action, service); actErr != nil {
		w.persist(r, service, types.StoredError)
		metrics.ActionsTotal.WithLabelValues(service, string(decision.Action), "failure").Inc()
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindClientException, Err: actErr}
	}
	if decision.Action != types.ActionNone {
		metrics.ActionsTotal.WithLabelValues(service, string(decision.Action), "success").Inc()
	}

	w.persist(r, service, decision.NewStoredState)
	w.reconcileTags(ctx, r, decision.Action)
	return nil
}

// maybeResize is a no-op for RDS today: read replicas and Aurora members
// already refuse resize via AllowResize, and the remaining instance types
// resize through ModifyDBInstance, which the current cloud.DatabaseService
// shape doesn't expose yet (see DESIGN.md).
func (w *RDSWorker) maybeResize(_ context.Context, _ types.ResourceRuntimeInfo, _ Decision, _ string) error {
	return nil
}

// snapshotName returns the pre-stop snapshot identifier for instance id, or
// "" to skip the snapshot entirely when the feature is disabled.
func (w *RDSWorker) snapshotName(id string) string {
	if !w.cfg.EnableRDSSnapshots {
		return ""
	}
	name := fmt.Sprintf("%s-stopped-%s", w.cfg.StackName, id)
	return strings.ReplaceAll(name, " ", "")
}

func (w *RDSWorker) act(ctx context.Context, r types.ResourceRuntimeInfo, action types.RequestedAction, service string) error {
	if action == types.ActionNone {
		return nil
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ActionDuration, service, string(action))

	key := retry.BreakerKey{Account: w.account, Region: w.region, Service: service}
	return w.breakers.Execute(ctx, key, func() error {
		return retry.WithBackoff(ctx, w.cfg.Backoff, w.cfg.IsTransient, func(ctx context.Context) error {
			switch {
			case action == types.ActionStart && r.IsCluster:
				return w.db.StartCluster(ctx, r.ID)
			case action == types.ActionStart:
				return w.db.StartInstance(ctx, r.ID)
			case r.IsCluster:
				// RDS has no hibernate concept; a Hibernate schedule on an
				// RDS resource degrades to a plain stop. Aurora clusters
				// have no pre-stop snapshot parameter to set.
				return w.db.StopCluster(ctx, r.ID)
			default:
				return w.db.StopInstance(ctx, r.ID, w.snapshotName(r.ID))
			}
		})
	})
}

func (w *RDSWorker) persist(r types.ResourceRuntimeInfo, service string, state types.StoredState) {
	rec := &types.RegistryRecord{
		Account:     w.account,
		Region:      w.region,
		Service:     service,
		ResourceID:  r.ID,
		ARN:         r.ARN,
		StoredState: state,
		UpdatedAt:   time.Now(),
	}
	if err := w.store.PutRegistryRecord(rec); err != nil {
		w.logger.Error().Err(err).Str("resource_id", r.ID).Msg("failed to persist registry record")
	}
}

func (w *RDSWorker) reconcileTags(ctx context.Context, r types.ResourceRuntimeInfo, action types.RequestedAction) {
	add, remove := w.cfg.Tags.Reconcile(action)
	if len(add) > 0 {
		if err := w.db.AddTags(ctx, r.ARN, add); err != nil {
			w.logger.Warn().Err(err).Str("resource_id", r.ID).Msg("failed to add post-action tags")
		}
	}
	if len(remove) > 0 {
		if err := w.db.RemoveTags(ctx, r.ARN, remove); err != nil {
			w.logger.Warn().Err(err).Str("resource_id", r.ID).Msg("failed to remove post-action tags")
		}
	}
}

func isClusterARN(arn string) bool {
	return strings.Contains(arn, ":cluster:")
}
