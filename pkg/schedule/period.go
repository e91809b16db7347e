package schedule

import (
	"time"

	"github.com/cuemby/fleetsched/pkg/types"
)

// weekdayIndex converts a time.Weekday (Sunday=0) to the domain's Monday=0
// convention used by the set expression parser.
func weekdayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// minuteOfDay returns the minute-resolution time of day, 0..1439.
func minuteOfDay(t time.Time) types.MinuteOfDay {
	return types.MinuteOfDay(t.Hour()*60 + t.Minute())
}

// periodActive reports whether p is active at t: both times present
// requires begin <= time < end+1; only begin requires begin <= time;
// only end requires time < end+1; neither means "active whenever
// calendar fields match".
func periodActive(p *types.Period, t time.Time) (bool, error) {
	if p.Weekdays != "" {
		set, err := weekdayBuilder.Build(p.Weekdays)
		if err != nil {
			return false, err
		}
		if !set.Contains(weekdayIndex(t.Weekday())) {
			return false, nil
		}
	}
	if p.Monthdays != "" {
		set, err := monthdayBuilder.Build(p.Monthdays)
		if err != nil {
			return false, err
		}
		if !set.Contains(t.Day()) {
			return false, nil
		}
	}
	if p.Months != "" {
		set, err := monthBuilder.Build(p.Months)
		if err != nil {
			return false, err
		}
		if !set.Contains(int(t.Month())) {
			return false, nil
		}
	}

	minute := minuteOfDay(t)
	switch {
	case p.BeginTime != nil && p.EndTime != nil:
		return *p.BeginTime <= minute && minute < *p.EndTime+1, nil
	case p.BeginTime != nil:
		return *p.BeginTime <= minute, nil
	case p.EndTime != nil:
		return minute < *p.EndTime+1, nil
	default:
		return true, nil
	}
}
