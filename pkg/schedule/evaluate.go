package schedule

import (
	"fmt"
	"time"

	"github.com/cuemby/fleetsched/pkg/types"
)

// MaintenanceWindowChecker resolves whether a schedule's attached
// maintenance window is currently RUNNING at UTC "now". The maintenance
// package implements this against its cache; tests can wrap a func
// literal in MaintenanceWindowCheckerFunc.
type MaintenanceWindowChecker interface {
	Evaluate(scheduleName string, utcNow time.Time) (running bool, err error)
}

// MaintenanceWindowCheckerFunc adapts a plain function to a
// MaintenanceWindowChecker.
type MaintenanceWindowCheckerFunc func(scheduleName string, utcNow time.Time) (bool, error)

func (f MaintenanceWindowCheckerFunc) Evaluate(scheduleName string, utcNow time.Time) (bool, error) {
	return f(scheduleName, utcNow)
}

// Evaluate computes the desired-state triple for schedule s at instant t
// (UTC). lib resolves period names; window may be nil when the caller has
// no maintenance-window collaborator wired (use_maintenance_window is
// then treated as if it evaluates to not-running).
func Evaluate(lib *Library, s *types.Schedule, t time.Time, window MaintenanceWindowChecker) (types.DesiredStateTriple, error) {
	if s.OverrideStatus != nil {
		return types.DesiredStateTriple{State: *s.OverrideStatus, ActivePeriod: "override"}, nil
	}

	zone, err := loadZone(s.Timezone)
	if err != nil {
		return types.DesiredStateTriple{}, err
	}
	tz := t.In(zone)

	var candidate *types.DesiredStateTriple
	for _, ref := range s.Periods {
		p, ok := lib.Period(ref.PeriodName)
		if !ok {
			return types.DesiredStateTriple{}, fmt.Errorf("schedule %q: %w: %q", s.Name, ErrPeriodNotFound, ref.PeriodName)
		}
		active, err := periodActive(p, tz)
		if err != nil {
			return types.DesiredStateTriple{}, fmt.Errorf("schedule %q: period %q: %w", s.Name, p.Name, err)
		}
		if active {
			candidate = &types.DesiredStateTriple{
				State:        types.StateRunning,
				TargetType:   ref.TargetInstanceType,
				ActivePeriod: p.Name,
			}
			break
		}
	}

	triple := types.DesiredStateTriple{State: types.StateStopped}
	if candidate != nil {
		triple = *candidate
	}

	if s.UseMaintenanceWindow && window != nil && triple.State == types.StateStopped {
		running, err := window.Evaluate(s.Name, t)
		if err != nil {
			return types.DesiredStateTriple{}, fmt.Errorf("schedule %q: maintenance window: %w", s.Name, err)
		}
		if running {
			triple = types.DesiredStateTriple{State: types.StateRunning, ActivePeriod: "maintenance_window"}
		}
	}

	return triple, nil
}
