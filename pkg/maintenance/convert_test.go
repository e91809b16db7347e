package maintenance

import (
	"testing"
	"time"
)

// TestParsePreferredWindowSameDay tests the common case where the 10-minute
// lead shift stays within the start day.
func TestParsePreferredWindowSameDay(t *testing.T) {
	sched, periods, err := ParsePreferredWindow("tue:22:00-tue:23:00")
	if err != nil {
		t.Fatalf("ParsePreferredWindow() error = %v", err)
	}
	if len(periods) != 1 {
		t.Fatalf("ParsePreferredWindow() periods = %d, want 1", len(periods))
	}
	p := periods[0]
	if *p.BeginTime != 21*60+50 {
		t.Errorf("BeginTime = %d, want %d", *p.BeginTime, 21*60+50)
	}
	if *p.EndTime != 23*60-1 {
		t.Errorf("EndTime = %d, want %d", *p.EndTime, 23*60-1)
	}
	if p.Weekdays != "tue" {
		t.Errorf("Weekdays = %q, want tue", p.Weekdays)
	}
	if len(sched.Periods) != 1 {
		t.Fatalf("schedule periods = %d, want 1", len(sched.Periods))
	}
}

// TestParsePreferredWindowMidnightWrap tests invariant 10's edge case: a
// window starting at 00:05 needs the lead shift to cross into the previous
// weekday, which also makes the synthesized schedule span midnight.
func TestParsePreferredWindowMidnightWrap(t *testing.T) {
	_, periods, err := ParsePreferredWindow("wed:00:05-wed:01:00")
	if err != nil {
		t.Fatalf("ParsePreferredWindow() error = %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("ParsePreferredWindow() periods = %d, want 2", len(periods))
	}
	first, second := periods[0], periods[1]
	if first.Weekdays != "tue" {
		t.Errorf("first.Weekdays = %q, want tue (wrapped back)", first.Weekdays)
	}
	if *first.BeginTime != 23*60+55 {
		t.Errorf("first.BeginTime = %d, want %d", *first.BeginTime, 23*60+55)
	}
	if second.Weekdays != "wed" {
		t.Errorf("second.Weekdays = %q, want wed", second.Weekdays)
	}
}

// TestParsePreferredWindowSpansMidnight tests a window whose start and end
// days differ without the lead shift being involved: two periods are
// produced, spanning midnight.
func TestParsePreferredWindowSpansMidnight(t *testing.T) {
	_, periods, err := ParsePreferredWindow("fri:23:50-sat:00:30")
	if err != nil {
		t.Fatalf("ParsePreferredWindow() error = %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("ParsePreferredWindow() periods = %d, want 2", len(periods))
	}
	if periods[0].Weekdays != "fri" || periods[1].Weekdays != "sat" {
		t.Errorf("periods = %+v, want fri then sat", periods)
	}
}

// TestEvaluateRDSPreferredWindowTenMinuteLead checks invariant 10 directly:
// the synthesized schedule is RUNNING at HH:MM-10m on the window's weekday.
func TestEvaluateRDSPreferredWindowTenMinuteLead(t *testing.T) {
	// 2024-11-05 is a Tuesday.
	at := time.Date(2024, 11, 5, 21, 50, 0, 0, time.UTC)
	running, err := EvaluateRDSPreferredWindow("tue:22:00-tue:23:00", at)
	if err != nil {
		t.Fatalf("EvaluateRDSPreferredWindow() error = %v", err)
	}
	if !running {
		t.Error("EvaluateRDSPreferredWindow() = false, want true at 10-minute lead")
	}

	before := at.Add(-time.Minute)
	running, err = EvaluateRDSPreferredWindow("tue:22:00-tue:23:00", before)
	if err != nil {
		t.Fatalf("EvaluateRDSPreferredWindow() error = %v", err)
	}
	if running {
		t.Error("EvaluateRDSPreferredWindow() = true one minute before lead, want false")
	}

	after := at.Add(70 * time.Minute) // 23:00 UTC
	running, err = EvaluateRDSPreferredWindow("tue:22:00-tue:23:00", after)
	if err != nil {
		t.Fatalf("EvaluateRDSPreferredWindow() error = %v", err)
	}
	if running {
		t.Error("EvaluateRDSPreferredWindow() = true after window end, want false")
	}
}

// TestEvaluateRDSPreferredWindowS2 mirrors spec scenario S2's three probes.
func TestEvaluateRDSPreferredWindowS2(t *testing.T) {
	window := "tue:22:00-tue:23:00"

	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2024, 11, 5, 21, 50, 0, 0, time.UTC), true},
		{time.Date(2024, 11, 5, 22, 59, 0, 0, time.UTC), true},
		{time.Date(2024, 11, 5, 23, 0, 0, 0, time.UTC), false},
	}
	for _, c := range cases {
		got, err := EvaluateRDSPreferredWindow(window, c.at)
		if err != nil {
			t.Fatalf("EvaluateRDSPreferredWindow(%v) error = %v", c.at, err)
		}
		if got != c.want {
			t.Errorf("EvaluateRDSPreferredWindow(%v) = %v, want %v", c.at, got, c.want)
		}
	}
}
