/*
Package targetsched implements the per-resource decision procedure
shared by the EC2 and RDS workers: given a resource's
observed state, its evaluated desired state, and the last state recorded
in the registry, decide what action (if any) to take and what to persist.

The decision function itself is pure and cloud-agnostic; Worker wires it
to a cloud.ComputeService/cloud.DatabaseService, the registry, and the
bisect-retry batch dispatcher.
*/
package targetsched

import (
	"github.com/cuemby/fleetsched/pkg/types"
)

// Decision is what the per-resource procedure decided to do with one
// resource this tick.
type Decision struct {
	Action         types.RequestedAction
	ResizeTo       string // non-empty when a resize must precede a start
	NewStoredState types.StoredState
}

// Decide implements the decision procedure for one resource. Termination
// handling ("delete registry record") is the caller's responsibility
// since it has no stored-state output of its own.
func Decide(last types.StoredState, desired types.DesiredStateTriple, s *types.Schedule, observed *types.ResourceRuntimeInfo) Decision {
	running := observed.IsRunning()

	switch last {
	case types.StoredUnknown:
		if running && desired.State == types.StateStopped && !s.StopNewInstances {
			return Decision{Action: types.ActionNone, NewStoredState: types.StoredStopped}
		}
		return apply(last, desired, s, observed, running)

	case types.StoredRetainRunning:
		switch desired.State {
		case types.StateRunning:
			return Decision{Action: types.ActionNone, NewStoredState: types.StoredRetainRunning}
		case types.StateStopped:
			return Decision{Action: types.ActionNone, NewStoredState: types.StoredStopped}
		default:
			return Decision{Action: types.ActionNone, NewStoredState: types.StoredState(desired.State)}
		}
	}

	if s.Enforced {
		if (running && desired.State != types.StateRunning) || (!running && desired.State != types.StateStopped) {
			return apply(last, desired, s, observed, running)
		}
		return Decision{Action: types.ActionNone, NewStoredState: storedStateOf(desired.State)}
	}

	if last != storedStateOf(desired.State) {
		return apply(last, desired, s, observed, running)
	}
	return Decision{Action: types.ActionNone, NewStoredState: last}
}

func apply(last types.StoredState, desired types.DesiredStateTriple, s *types.Schedule, observed *types.ResourceRuntimeInfo, running bool) Decision {
	switch desired.State {
	case types.StateRunning:
		if running {
			if last == types.StoredStopped && s.RetainRunning {
				return Decision{Action: types.ActionNone, NewStoredState: types.StoredRetainRunning}
			}
			return Decision{Action: types.ActionNone, NewStoredState: types.StoredRunning}
		}
		d := Decision{Action: types.ActionStart, NewStoredState: types.StoredRunning}
		if desired.TargetType != "" && observed.AllowResize && desired.TargetType != observed.InstanceType {
			d.ResizeTo = desired.TargetType
		}
		return d

	case types.StateStopped:
		if !running {
			return Decision{Action: types.ActionNone, NewStoredState: types.StoredStopped}
		}
		if s.Hibernate {
			return Decision{Action: types.ActionHibernate, NewStoredState: types.StoredStopped}
		}
		return Decision{Action: types.ActionStop, NewStoredState: types.StoredStopped}
	}
	return Decision{Action: types.ActionNone, NewStoredState: last}
}

func storedStateOf(d types.DesiredState) types.StoredState {
	if d == types.StateRunning {
		return types.StoredRunning
	}
	return types.StoredStopped
}
