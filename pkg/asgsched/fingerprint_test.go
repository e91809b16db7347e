package asgsched

import (
	"testing"
	"time"

	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/types"
)

func newTestLibrary(t *testing.T, periods []*types.Period, schedules []*types.Schedule) *schedule.Library {
	t.Helper()
	lib, diagnostics := schedule.NewLibrary(periods, schedules)
	if len(diagnostics) > 0 {
		t.Fatalf("NewLibrary: %v", diagnostics)
	}
	return lib
}

func zeroTime() time.Time {
	return time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func businessHoursSchedule() (*types.Period, *types.Schedule) {
	p := &types.Period{Name: "business-hours", BeginTime: minuteOf(9, 0), EndTime: minuteOf(18, 0), Weekdays: "mon-fri"}
	s := &types.Schedule{
		Name:     "office-hours",
		Timezone: "UTC",
		Periods:  []types.PeriodRef{{PeriodName: "business-hours"}},
	}
	return p, s
}

// TestFingerprintStableAcrossCalls mirrors invariant 8: hashing the same
// schedule and its referenced periods twice produces the same digest.
func TestFingerprintStableAcrossCalls(t *testing.T) {
	p, s := businessHoursSchedule()
	lib := newTestLibrary(t, []*types.Period{p}, []*types.Schedule{s})

	h1, err := fingerprint(lib, s)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	h2, err := fingerprint(lib, s)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if h1 != h2 {
		t.Errorf("fingerprint changed across calls: %q != %q", h1, h2)
	}
}

// TestFingerprintChangesWithPeriodEdit ensures the hash reacts to an edit
// of a referenced period, not just the schedule row itself.
func TestFingerprintChangesWithPeriodEdit(t *testing.T) {
	p, s := businessHoursSchedule()
	lib := newTestLibrary(t, []*types.Period{p}, []*types.Schedule{s})
	before, err := fingerprint(lib, s)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	p.EndTime = minuteOf(19, 0)
	lib2 := newTestLibrary(t, []*types.Period{p}, []*types.Schedule{s})
	after, err := fingerprint(lib2, s)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if before == after {
		t.Errorf("fingerprint did not change after editing the referenced period")
	}
}

// TestNeedsReconfigureOnMDMDrift verifies the MDM-differs trigger.
func TestNeedsReconfigureOnMDMDrift(t *testing.T) {
	last := &types.ASGConfiguration{MinSize: 1, DesiredSize: 2, MaxSize: 3, ScheduleHash: "h"}
	if !needsReconfigure(last, mdm{Min: 1, Desired: 3, Max: 3}, "h", zeroTime()) {
		t.Error("expected reconfigure on MDM drift")
	}
}

// TestNeedsReconfigureOnHashDrift verifies the fingerprint-differs trigger.
func TestNeedsReconfigureOnHashDrift(t *testing.T) {
	last := &types.ASGConfiguration{MinSize: 1, DesiredSize: 2, MaxSize: 3, ScheduleHash: "h1"}
	if !needsReconfigure(last, mdm{Min: 1, Desired: 2, Max: 3}, "h2", zeroTime()) {
		t.Error("expected reconfigure on hash drift")
	}
}

// TestNeedsReconfigureNoopWhenStable verifies that an unchanged MDM, hash,
// and a validity window far from expiry produces no reconfigure.
func TestNeedsReconfigureNoopWhenStable(t *testing.T) {
	now := zeroTime()
	last := &types.ASGConfiguration{MinSize: 1, DesiredSize: 2, MaxSize: 3, ScheduleHash: "h", ValidUntil: now.AddDate(0, 0, 29)}
	if needsReconfigure(last, mdm{Min: 1, Desired: 2, Max: 3}, "h", now) {
		t.Error("expected no-op when MDM, hash, and validity window are all unchanged")
	}
}
