package asgsched

import (
	"context"
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

// Config is the operator-configured policy for the auto-scaling-group
// scheduler: tag key names and the retry posture around every API call.
type Config struct {
	ScheduleTagKey     string
	MDMTagKey          string
	ErrorTagKey        string
	ErrorMessageTagKey string
	ActionNamePrefix   string
	Backoff            retry.BackoffConfig
	IsTransient        retry.Retryable
}

func (c Config) withDefaults() Config {
	if c.MDMTagKey == "" {
		c.MDMTagKey = "IS-MinDesiredMax"
	}
	if c.ErrorTagKey == "" {
		c.ErrorTagKey = "IS-Error"
	}
	if c.ErrorMessageTagKey == "" {
		c.ErrorMessageTagKey = "IS-ErrorMessage"
	}
	if c.ActionNamePrefix == "" {
		c.ActionNamePrefix = "IS-"
	}
	return c
}

// Worker runs one reconciliation cycle of the ASG reconfigure procedure
// for every tagged group in one (account, region) partition.
type Worker struct {
	cfg      Config
	asg      cloud.ASGService
	store    storage.Store
	lib      *schedule.Library
	breakers *retry.BreakerRegistry
	account  string
	region   string
	logger   zerolog.Logger
}

func NewWorker(cfg Config, asg cloud.ASGService, store storage.Store, lib *schedule.Library, breakers *retry.BreakerRegistry, account, region string) *Worker {
	return &Worker{
		cfg:      cfg.withDefaults(),
		asg:      asg,
		store:    store,
		lib:      lib,
		breakers: breakers,
		account:  account,
		region:   region,
		logger:   log.WithAccount(account).With().Str("region", region).Str("service", "autoscaling").Logger(),
	}
}

func (w *Worker) Run(ctx context.Context, now time.Time) ([]error, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.ReconciliationDuration, "autoscaling")
		metrics.ReconciliationCyclesTotal.WithLabelValues("autoscaling").Inc()
	}()

	var errs []error
	err := w.asg.DescribeTagged(ctx, w.cfg.ScheduleTagKey, func(r types.ResourceRuntimeInfo) error {
		if procErr := w.processOne(ctx, r, now); procErr != nil {
			errs = append(errs, procErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("asgsched: enumerate groups: %w", err)
	}
	w.logger.Info().Int("errors", len(errs)).Msg("reconciliation cycle complete")
	return errs, nil
}

func (w *Worker) processOne(ctx context.Context, r types.ResourceRuntimeInfo, now time.Time) error {
	sched, ok := w.lib.Schedule(r.ScheduleName)
	if !ok {
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindUnknownSchedule, Err: fmt.Errorf("group tagged with unknown schedule %q", r.ScheduleName)}
	}

	if supported, reason := CheckCompatibility(w.lib, sched); !supported {
		w.setErrorTags(ctx, r.ID, reason)
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindDefinitionInvalid, Err: fmt.Errorf("%s", reason)}
	}

	target, err := w.resolveMDM(ctx, r)
	if err != nil {
		return err
	}

	hash, err := fingerprint(w.lib, sched)
	if err != nil {
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindDefinitionInvalid, Err: err}
	}

	var last *types.ASGConfiguration
	if rec, err := w.store.GetRegistryRecord(w.account, w.region, string(types.KindAutoScaling), r.ID); err == nil {
		last = rec.LastConfigured
	}

	if !needsReconfigure(last, target, hash, now) {
		return nil
	}

	if err := w.reconfigure(ctx, r, sched, target); err != nil {
		metrics.ActionsTotal.WithLabelValues(string(types.KindAutoScaling), string(types.ActionConfigure), "failure").Inc()
		return err
	}
	metrics.ActionsTotal.WithLabelValues(string(types.KindAutoScaling), string(types.ActionConfigure), "success").Inc()

	rec := &types.RegistryRecord{
		Account:      w.account,
		Region:       w.region,
		Service:      string(types.KindAutoScaling),
		ResourceID:   r.ID,
		Name:         r.Name,
		ScheduleName: r.ScheduleName,
		StoredState:  types.StoredConfigured,
		LastConfigured: &types.ASGConfiguration{
			MinSize:      target.Min,
			DesiredSize:  target.Desired,
			MaxSize:      target.Max,
			ScheduleHash: hash,
			ValidUntil:   now.Add(30 * 24 * time.Hour),
		},
		UpdatedAt: now,
	}
	if err := w.store.PutRegistryRecord(rec); err != nil {
		w.logger.Error().Err(err).Str("resource_id", r.ID).Msg("failed to persist registry record")
	}
	return nil
}

// needsReconfigure implements the three trigger conditions for reinstalling
// scheduled actions: MDM differs, the configuration fingerprint differs, or
// the last install is within 24h of expiring.
func needsReconfigure(last *types.ASGConfiguration, target mdm, hash string, now time.Time) bool {
	if last == nil {
		return true
	}
	if last.MinSize != target.Min || last.DesiredSize != target.Desired || last.MaxSize != target.Max {
		return true
	}
	if last.ScheduleHash != hash {
		return true
	}
	return !now.Before(last.ValidUntil.Add(-24 * time.Hour))
}

// resolveMDM reads the group's MDM tag, adopting and writing back the
// group's current (min, desired, max) on first sight. A zero-valued
// adopted MDM is an error condition: the operator must set a nonzero
// running target before any action is installed.
func (w *Worker) resolveMDM(ctx context.Context, r types.ResourceRuntimeInfo) (mdm, error) {
	if value, ok := r.Tags[w.cfg.MDMTagKey]; ok {
		m, err := parseMDM(value)
		if err != nil {
			w.setErrorTags(ctx, r.ID, err.Error())
			return mdm{}, &types.ResourceError{ResourceID: r.ID, Kind: types.KindDefinitionInvalid, Err: err}
		}
		return m, nil
	}

	m := mdm{Min: r.MinSize, Desired: r.DesiredSize, Max: r.MaxSize}
	if m.isZero() {
		reason := "auto-scaling group has no MDM tag and its current min/desired/max is 0-0-0; set a nonzero running target"
		w.setErrorTags(ctx, r.ID, reason)
		return mdm{}, &types.ResourceError{ResourceID: r.ID, Kind: types.KindUnschedulableState, Err: fmt.Errorf("%s", reason)}
	}
	if err := w.asg.CreateOrUpdateTags(ctx, r.ID, map[string]string{w.cfg.MDMTagKey: m.String()}); err != nil {
		w.logger.Warn().Err(err).Str("resource_id", r.ID).Msg("failed to adopt MDM tag")
	}
	return m, nil
}

func (w *Worker) setErrorTags(ctx context.Context, groupName, message string) {
	if err := w.asg.CreateOrUpdateTags(ctx, groupName, map[string]string{
		w.cfg.ErrorTagKey:        "true",
		w.cfg.ErrorMessageTagKey: message,
	}); err != nil {
		w.logger.Warn().Err(err).Str("resource_id", groupName).Msg("failed to set error tags")
	}
}

// reconfigure runs the install sequence, rolling back to the previously
// installed actions if the batch-put fails.
func (w *Worker) reconfigure(ctx context.Context, r types.ResourceRuntimeInfo, sched *types.Schedule, target mdm) error {
	actions, err := buildActions(w.lib, sched, target, w.cfg.ActionNamePrefix)
	if err != nil {
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindDefinitionInvalid, Err: err}
	}

	key := retry.BreakerKey{Account: w.account, Region: w.region, Service: string(types.KindAutoScaling)}
	call := func(fn func(ctx context.Context) error) error {
		return w.breakers.Execute(ctx, key, func() error {
			return retry.WithBackoff(ctx, w.cfg.Backoff, w.cfg.IsTransient, fn)
		})
	}

	var existing []cloud.ScheduledAction
	err = call(func(ctx context.Context) error {
		existing, err = w.asg.DescribeScheduledActions(ctx, r.ID, w.cfg.ActionNamePrefix)
		return err
	})
	if err != nil {
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindClientException, Err: fmt.Errorf("describe existing scheduled actions: %w", err)}
	}

	names := make([]string, len(existing))
	for i, a := range existing {
		names[i] = a.Name
	}
	if len(names) > 0 {
		if err := call(func(ctx context.Context) error { return w.asg.BatchDeleteScheduledActions(ctx, r.ID, names) }); err != nil {
			return &types.ResourceError{ResourceID: r.ID, Kind: types.KindClientException, Err: fmt.Errorf("delete existing scheduled actions: %w", err)}
		}
	}

	if err := call(func(ctx context.Context) error { return w.asg.BatchPutScheduledActions(ctx, r.ID, actions) }); err != nil {
		putErr := err
		if len(existing) > 0 {
			if rollbackErr := call(func(ctx context.Context) error {
				return w.asg.BatchPutScheduledActions(ctx, r.ID, existing)
			}); rollbackErr != nil {
				return &types.ResourceError{ResourceID: r.ID, Kind: types.KindRollbackFailed, Err: fmt.Errorf("put failed (%v) and rollback failed: %w", putErr, rollbackErr)}
			}
		}
		return &types.ResourceError{ResourceID: r.ID, Kind: types.KindClientException, Err: fmt.Errorf("put new scheduled actions: %w", putErr)}
	}
	return nil
}

// buildActions translates every period a schedule references into its
// start/stop scheduled-action pair. A period missing begin or end
// generates only the corresponding one-sided action.
func buildActions(lib *schedule.Library, s *types.Schedule, target mdm, prefix string) ([]cloud.ScheduledAction, error) {
	var actions []cloud.ScheduledAction
	for _, ref := range s.Periods {
		p, ok := lib.Period(ref.PeriodName)
		if !ok {
			return nil, fmt.Errorf("schedule %q references missing period %q", s.Name, ref.PeriodName)
		}

		if cron, err := beginCron(p); err != nil {
			return nil, err
		} else if cron != "" {
			actions = append(actions, cloud.ScheduledAction{
				Name:            prefix + p.Name + "Start",
				Recurrence:      cron,
				MinSize:         int32p(target.Min),
				DesiredCapacity: int32p(target.Desired),
				MaxSize:         int32p(target.Max),
			})
		}

		if cron, err := endCron(p); err != nil {
			return nil, err
		} else if cron != "" {
			actions = append(actions, cloud.ScheduledAction{
				Name:            prefix + p.Name + "Stop",
				Recurrence:      cron,
				MinSize:         int32p(0),
				DesiredCapacity: int32p(0),
				MaxSize:         int32p(0),
			})
		}
	}
	return actions, nil
}

func int32p(v int32) *int32 { return &v }
