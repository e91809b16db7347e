package maintenance

import (
	"context"
	"time"

	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/types"
)

// WindowService is the capability consumed from the SSM-style maintenance
// window collaborator: whether a named window is active right now. The
// core never calls SSM directly, it consumes this interface instead.
type WindowService interface {
	IsActive(ctx context.Context, windowName string, at time.Time) (bool, error)
}

const defaultCacheTTL = 5 * time.Minute

// Resolver answers "is any of these SSM maintenance windows active right
// now", backed by Cache so a tick with thousands of resources sharing a
// handful of windows doesn't re-call SSM per resource.
type Resolver struct {
	cache   Cache
	windows WindowService
	ttl     time.Duration
}

// NewResolver builds a Resolver. ttl of zero uses defaultCacheTTL.
func NewResolver(cache Cache, windows WindowService, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Resolver{cache: cache, windows: windows, ttl: ttl}
}

// EvaluateWindows reports whether any of the named SSM windows is active
// at "at". An empty list is never active.
func (r *Resolver) EvaluateWindows(ctx context.Context, windowNames []string, at time.Time) (bool, error) {
	for _, name := range windowNames {
		if active, found, err := r.cache.Get(ctx, name); err == nil && found {
			if active {
				return true, nil
			}
			continue
		}

		active, err := r.windows.IsActive(ctx, name, at)
		if err != nil {
			return false, err
		}
		if setErr := r.cache.Set(ctx, name, active, r.ttl); setErr != nil {
			return false, setErr
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

// Checker adapts a Resolver plus a schedule.Library into the
// schedule.MaintenanceWindowChecker the evaluator needs: it looks up the
// named schedule's ssm_maintenance_window list and asks the resolver.
func (r *Resolver) Checker(lib *schedule.Library) schedule.MaintenanceWindowChecker {
	return schedule.MaintenanceWindowCheckerFunc(func(scheduleName string, at time.Time) (bool, error) {
		s, ok := lib.Schedule(scheduleName)
		if !ok || len(s.SSMMaintenanceWindows) == 0 {
			return false, nil
		}
		return r.EvaluateWindows(context.Background(), s.SSMMaintenanceWindows, at)
	})
}

// EvaluateRDSPreferredWindow reports whether "at" falls within the 10-
// minute-early lead of the RDS instance's preferred-maintenance-window
// string. It is pure computation and bypasses the cache: RDS preferred
// windows are per-instance, not shared across a fleet the way SSM window
// names are.
func EvaluateRDSPreferredWindow(window string, at time.Time) (bool, error) {
	sched, periods, err := ParsePreferredWindow(window)
	if err != nil {
		return false, err
	}
	lib, _ := schedule.NewLibrary(periods, []*types.Schedule{sched})
	triple, err := schedule.Evaluate(lib, sched, at, nil)
	if err != nil {
		return false, err
	}
	return triple.State == types.StateRunning, nil
}
