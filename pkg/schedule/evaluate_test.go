package schedule

import (
	"testing"
	"time"

	"github.com/cuemby/fleetsched/pkg/types"
)

func minutePtr(m int) *types.MinuteOfDay {
	v := types.MinuteOfDay(m)
	return &v
}

func bizSchedule() (*Library, *types.Schedule) {
	period := &types.Period{
		Name:      "business-hours",
		BeginTime: minutePtr(9 * 60),
		EndTime:   minutePtr(17 * 60),
	}
	sched := types.NewSchedule("biz", "America/New_York")
	sched.Periods = []types.PeriodRef{{PeriodName: "business-hours"}}

	lib, diags := NewLibrary([]*types.Period{period}, []*types.Schedule{sched})
	if len(diags) != 0 {
		panic(diags[0])
	}
	return lib, sched
}

// TestEvaluateS1BeforeWindow mirrors spec scenario S1: 08:59 local is before
// the period begins, so the evaluator must return STOPPED.
func TestEvaluateS1BeforeWindow(t *testing.T) {
	lib, sched := bizSchedule()
	instant := time.Date(2024, 1, 8, 13, 59, 0, 0, time.UTC) // 08:59 ET
	got, err := Evaluate(lib, sched, instant, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.State != types.StateStopped {
		t.Errorf("Evaluate() state = %v, want STOPPED", got.State)
	}
}

// TestEvaluateS1AtWindowStart mirrors spec scenario S1's exact boundary
// instant: 09:00 local must be RUNNING (begin is inclusive).
func TestEvaluateS1AtWindowStart(t *testing.T) {
	lib, sched := bizSchedule()
	instant := time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC) // 09:00 ET
	got, err := Evaluate(lib, sched, instant, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.State != types.StateRunning {
		t.Errorf("Evaluate() state = %v, want RUNNING", got.State)
	}
	if got.ActivePeriod != "business-hours" {
		t.Errorf("Evaluate() active period = %q, want business-hours", got.ActivePeriod)
	}
}

// TestEvaluateOverrideDominance checks invariant 1: an override bypasses
// period evaluation entirely, at any instant.
func TestEvaluateOverrideDominance(t *testing.T) {
	lib, sched := bizSchedule()
	stopped := types.StateStopped
	sched.OverrideStatus = &stopped

	instant := time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC) // would be RUNNING otherwise
	got, err := Evaluate(lib, sched, instant, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.State != types.StateStopped {
		t.Errorf("Evaluate() state = %v, want STOPPED (override)", got.State)
	}
	if got.ActivePeriod != "override" {
		t.Errorf("Evaluate() active period = %q, want override", got.ActivePeriod)
	}
}

// TestEvaluatePeriodInsertionOrderTieBreak checks invariant 2: when two
// periods are both active, the first in insertion order wins.
func TestEvaluatePeriodInsertionOrderTieBreak(t *testing.T) {
	wide := &types.Period{Name: "wide", BeginTime: minutePtr(0), EndTime: minutePtr(23*60 + 59)}
	narrow := &types.Period{Name: "narrow", BeginTime: minutePtr(9 * 60), EndTime: minutePtr(17 * 60)}

	sched := types.NewSchedule("overlap", "UTC")
	sched.Periods = []types.PeriodRef{
		{PeriodName: "wide", TargetInstanceType: "small"},
		{PeriodName: "narrow", TargetInstanceType: "large"},
	}
	lib, diags := NewLibrary([]*types.Period{wide, narrow}, []*types.Schedule{sched})
	if len(diags) != 0 {
		t.Fatalf("NewLibrary() diagnostics = %v", diags)
	}

	instant := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)
	got, err := Evaluate(lib, sched, instant, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.ActivePeriod != "wide" || got.TargetType != "small" {
		t.Errorf("Evaluate() = %+v, want wide/small (insertion order wins)", got)
	}
}

// TestEvaluateMaintenanceWindowOverridesToRunning checks that a running
// maintenance window overrides an otherwise-STOPPED result.
func TestEvaluateMaintenanceWindowOverridesToRunning(t *testing.T) {
	_, sched := bizSchedule()
	sched.UseMaintenanceWindow = true
	lib, _ := NewLibrary(nil, nil)
	lib.periods["business-hours"] = &types.Period{Name: "business-hours", BeginTime: minutePtr(9 * 60), EndTime: minutePtr(17 * 60)}
	lib.schedules["biz"] = sched

	instant := time.Date(2024, 1, 8, 4, 0, 0, 0, time.UTC) // well outside the period
	checker := MaintenanceWindowCheckerFunc(func(name string, now time.Time) (bool, error) {
		return name == "biz", nil
	})

	got, err := Evaluate(lib, sched, instant, checker)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.State != types.StateRunning {
		t.Errorf("Evaluate() state = %v, want RUNNING (maintenance window)", got.State)
	}
}

// TestNewLibraryDropsScheduleWithMissingPeriod mirrors scenario S5: a
// schedule referencing an undefined period is dropped, with a diagnostic.
func TestNewLibraryDropsScheduleWithMissingPeriod(t *testing.T) {
	sched := types.NewSchedule("biz", "UTC")
	sched.Periods = []types.PeriodRef{{PeriodName: "lunch"}}

	lib, diags := NewLibrary(nil, []*types.Schedule{sched})
	if len(diags) == 0 {
		t.Fatal("NewLibrary() expected a diagnostic for missing period")
	}
	if _, ok := lib.Schedule("biz"); ok {
		t.Error("NewLibrary() should have dropped schedule referencing missing period")
	}
}
