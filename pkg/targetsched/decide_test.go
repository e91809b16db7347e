package targetsched

import (
	"testing"

	"github.com/cuemby/fleetsched/pkg/types"
)

func runningResource() *types.ResourceRuntimeInfo {
	return &types.ResourceRuntimeInfo{State: types.ObservedRunning, AllowResize: true}
}

func stoppedResource() *types.ResourceRuntimeInfo {
	return &types.ResourceRuntimeInfo{State: types.ObservedStopped, AllowResize: true}
}

// TestDecideIdempotentNoOp mirrors invariant 3: matching stored state,
// non-enforced schedule, observed state matching desired issues no action.
func TestDecideIdempotentNoOp(t *testing.T) {
	s := &types.Schedule{StopNewInstances: true}
	d := Decide(types.StoredRunning, types.DesiredStateTriple{State: types.StateRunning}, s, runningResource())
	if d.Action != types.ActionNone {
		t.Errorf("Action = %v, want ActionNone", d.Action)
	}
}

// TestDecideEnforcementReconciliation mirrors invariant 4: enforced
// schedule with observed != desired issues exactly one corrective call.
func TestDecideEnforcementReconciliation(t *testing.T) {
	s := &types.Schedule{Enforced: true, StopNewInstances: true}
	d := Decide(types.StoredRunning, types.DesiredStateTriple{State: types.StateStopped}, s, runningResource())
	if d.Action != types.ActionStop {
		t.Errorf("Action = %v, want ActionStop", d.Action)
	}
	if d.NewStoredState != types.StoredStopped {
		t.Errorf("NewStoredState = %v, want StoredStopped", d.NewStoredState)
	}
}

// TestDecideRetainRunningPersistence mirrors invariant 5: last =
// retain_running, desired = STOPPED -> stored becomes STOPPED, no call.
func TestDecideRetainRunningPersistence(t *testing.T) {
	s := &types.Schedule{}
	d := Decide(types.StoredRetainRunning, types.DesiredStateTriple{State: types.StateStopped}, s, runningResource())
	if d.Action != types.ActionNone {
		t.Errorf("Action = %v, want ActionNone", d.Action)
	}
	if d.NewStoredState != types.StoredStopped {
		t.Errorf("NewStoredState = %v, want StoredStopped", d.NewStoredState)
	}
}

// TestDecideFirstSightSuppression mirrors invariant 6: unknown, running,
// desired STOPPED, stop_new_instances=false -> stored STOPPED, no call.
func TestDecideFirstSightSuppression(t *testing.T) {
	s := &types.Schedule{StopNewInstances: false}
	d := Decide(types.StoredUnknown, types.DesiredStateTriple{State: types.StateStopped}, s, runningResource())
	if d.Action != types.ActionNone {
		t.Errorf("Action = %v, want ActionNone", d.Action)
	}
	if d.NewStoredState != types.StoredStopped {
		t.Errorf("NewStoredState = %v, want StoredStopped", d.NewStoredState)
	}
}

// TestDecideFirstSightDefaultStops tests that stop_new_instances=true (the
// documented default) does not suppress the stop on first sight.
func TestDecideFirstSightDefaultStops(t *testing.T) {
	s := &types.Schedule{StopNewInstances: true}
	d := Decide(types.StoredUnknown, types.DesiredStateTriple{State: types.StateStopped}, s, runningResource())
	if d.Action != types.ActionStop {
		t.Errorf("Action = %v, want ActionStop", d.Action)
	}
}

// TestDecideRetainRunningOnStopBoundary tests the non-first-sight retain
// case: already running across a STOPPED->RUNNING boundary where the user
// started the instance manually during a stopped window.
func TestDecideRetainRunningOnStopBoundary(t *testing.T) {
	s := &types.Schedule{RetainRunning: true, StopNewInstances: true}
	d := Decide(types.StoredStopped, types.DesiredStateTriple{State: types.StateRunning}, s, runningResource())
	if d.Action != types.ActionNone {
		t.Errorf("Action = %v, want ActionNone", d.Action)
	}
	if d.NewStoredState != types.StoredRetainRunning {
		t.Errorf("NewStoredState = %v, want StoredRetainRunning", d.NewStoredState)
	}
}

// TestDecideHibernateOnStop tests that Hibernate schedules request
// hibernation rather than a plain stop.
func TestDecideHibernateOnStop(t *testing.T) {
	s := &types.Schedule{Hibernate: true, StopNewInstances: true}
	d := Decide(types.StoredRunning, types.DesiredStateTriple{State: types.StateStopped}, s, runningResource())
	if d.Action != types.ActionHibernate {
		t.Errorf("Action = %v, want ActionHibernate", d.Action)
	}
}

// TestDecideResizeBeforeStart tests that a start with a different target
// type requests a resize.
func TestDecideResizeBeforeStart(t *testing.T) {
	s := &types.Schedule{StopNewInstances: true}
	observed := stoppedResource()
	observed.InstanceType = "t3.micro"
	d := Decide(types.StoredStopped, types.DesiredStateTriple{State: types.StateRunning, TargetType: "t3.large"}, s, observed)
	if d.Action != types.ActionStart {
		t.Errorf("Action = %v, want ActionStart", d.Action)
	}
	if d.ResizeTo != "t3.large" {
		t.Errorf("ResizeTo = %q, want t3.large", d.ResizeTo)
	}
}

// TestDecideNoResizeWhenDisallowed tests that a resource with
// AllowResize=false never requests a resize even if target types differ.
func TestDecideNoResizeWhenDisallowed(t *testing.T) {
	s := &types.Schedule{StopNewInstances: true}
	observed := stoppedResource()
	observed.AllowResize = false
	observed.InstanceType = "db.t3.micro"
	d := Decide(types.StoredStopped, types.DesiredStateTriple{State: types.StateRunning, TargetType: "db.t3.large"}, s, observed)
	if d.ResizeTo != "" {
		t.Errorf("ResizeTo = %q, want empty (resize disallowed)", d.ResizeTo)
	}
}
