package asgsched

import (
	"testing"

	"github.com/cuemby/fleetsched/pkg/types"
)

func minuteOf(h, m int) *types.MinuteOfDay {
	v := types.MinuteOfDay(h*60 + m)
	return &v
}

// TestDowFieldConvertsMondayBasedToSundayBased checks the weekday
// conversion: the internal domain is Monday=0, the provider's cron field
// is Sunday=0.
func TestDowFieldConvertsMondayBasedToSundayBased(t *testing.T) {
	got, err := dowField("mon-fri")
	if err != nil {
		t.Fatalf("dowField: %v", err)
	}
	want := "1,2,3,4,5"
	if got != want {
		t.Errorf("dowField(mon-fri) = %q, want %q", got, want)
	}
}

func TestDowFieldSunday(t *testing.T) {
	got, err := dowField("sun")
	if err != nil {
		t.Fatalf("dowField: %v", err)
	}
	if got != "0" {
		t.Errorf("dowField(sun) = %q, want 0", got)
	}
}

func TestDowFieldUnconstrainedIsWildcard(t *testing.T) {
	got, err := dowField("")
	if err != nil {
		t.Fatalf("dowField: %v", err)
	}
	if got != "*" {
		t.Errorf("dowField(\"\") = %q, want *", got)
	}
}

// TestPeriodCronOneSided tests that a period missing end produces only a
// begin-side cron expression.
func TestPeriodCronOneSided(t *testing.T) {
	p := &types.Period{Name: "business-hours", BeginTime: minuteOf(9, 0), Weekdays: "mon-fri"}
	begin, err := beginCron(p)
	if err != nil {
		t.Fatalf("beginCron: %v", err)
	}
	if begin != "0 9 * * 1,2,3,4,5" {
		t.Errorf("beginCron = %q", begin)
	}
	end, err := endCron(p)
	if err != nil {
		t.Fatalf("endCron: %v", err)
	}
	if end != "" {
		t.Errorf("endCron = %q, want empty for a period with no EndTime", end)
	}
}
