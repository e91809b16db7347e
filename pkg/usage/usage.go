/*
Package usage computes, for a schedule and an inclusive date range, the
running intervals the schedule would have produced and the billed
seconds/hours those intervals represent. It is a read-only replay of the
same decision evaluator the per-target workers use, never a separate
estimate.
*/
package usage

import (
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/fleetsched/pkg/metrics"
	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/types"
)

// Interval is one contiguous RUNNING stretch found while walking a day's
// event instants.
type Interval struct {
	Period         string    `json:"period"`
	Begin          time.Time `json:"begin"`
	End            time.Time `json:"end"`
	BillingSeconds int64     `json:"billing_seconds"`
	BillingHours   int64     `json:"billing_hours"`
}

// DayTotal is one calendar day's accounting result, in the schedule's
// timezone.
type DayTotal struct {
	Date           string     `json:"date"`
	Intervals      []Interval `json:"running_periods"`
	BillingSeconds int64      `json:"billing_seconds"`
	BillingHours   int64      `json:"billing_hours"`
}

// Report is the full date-range result for one schedule.
type Report struct {
	Schedule string     `json:"schedule"`
	Days     []DayTotal `json:"usage"`
}

// Compute walks every day in [start, end] (inclusive, in the schedule's
// timezone) and returns the running intervals and billing totals per day.
func Compute(lib *schedule.Library, s *types.Schedule, start, end time.Time, window schedule.MaintenanceWindowChecker) (*Report, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.UsageComputeDuration)

	zone, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("usage: load timezone %q: %w", s.Timezone, err)
	}
	d0 := truncateToDay(start, zone)
	d1 := truncateToDay(end, zone)
	if d0.After(d1) {
		return nil, fmt.Errorf("usage: start date %s is after end date %s", d0.Format("2006-01-02"), d1.Format("2006-01-02"))
	}

	report := &Report{Schedule: s.Name}
	for d := d0; !d.After(d1); d = d.AddDate(0, 0, 1) {
		day, err := computeDay(lib, s, d, window)
		if err != nil {
			return nil, fmt.Errorf("usage: %s: %w", d.Format("2006-01-02"), err)
		}
		report.Days = append(report.Days, day)
	}
	return report, nil
}

func truncateToDay(t time.Time, zone *time.Location) time.Time {
	tz := t.In(zone)
	return time.Date(tz.Year(), tz.Month(), tz.Day(), 0, 0, 0, 0, zone)
}

// computeDay builds the day's event-instant timeline (00:00, every period
// begin/end falling on this day, 23:59), walks it in order evaluating the
// schedule at each instant, and emits an interval on every RUNNING→STOPPED
// transition.
func computeDay(lib *schedule.Library, s *types.Schedule, day time.Time, window schedule.MaintenanceWindowChecker) (DayTotal, error) {
	dayStart := day
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, day.Location())

	instants := map[int64]struct{}{dayStart.Unix(): {}, dayEnd.Unix(): {}}
	for _, ref := range s.Periods {
		p, ok := lib.Period(ref.PeriodName)
		if !ok {
			continue
		}
		if p.BeginTime != nil {
			t := atMinute(dayStart, *p.BeginTime)
			instants[t.Unix()] = struct{}{}
		}
		if p.EndTime != nil {
			// The evaluator treats EndTime as the last active minute
			// (inclusive), so the instant where the period actually goes
			// STOPPED is one minute later.
			t := atMinute(dayStart, *p.EndTime).Add(time.Minute)
			instants[t.Unix()] = struct{}{}
		}
	}

	var (
		intervals     []Interval
		state         = types.StateStopped
		startedAt     time.Time
		startedPeriod string
		inRun         bool
	)
	for _, t := range sortedInstants(instants, day.Location()) {
		triple, err := schedule.Evaluate(lib, s, t, window)
		if err != nil {
			return DayTotal{}, err
		}
		if triple.State == state {
			continue
		}
		switch triple.State {
		case types.StateRunning:
			startedAt = t
			startedPeriod = triple.ActivePeriod
			inRun = true
		case types.StateStopped:
			if inRun {
				intervals = append(intervals, newInterval(startedPeriod, startedAt, boundaryAdjustedStop(lib, s, t, window)))
				inRun = false
			}
		}
		state = triple.State
	}
	if inRun {
		intervals = append(intervals, newInterval(startedPeriod, startedAt, dayEnd.Add(time.Minute)))
	}

	total := DayTotal{Date: dayStart.Format("2006-01-02"), Intervals: intervals}
	for _, iv := range intervals {
		total.BillingSeconds += iv.BillingSeconds
		total.BillingHours += iv.BillingHours
	}
	return total, nil
}

// boundaryAdjustedStop nudges a stop instant one minute later when the
// very next minute still evaluates as RUNNING, matching the original
// implementation's adjustment check at the minute boundary between two
// back-to-back periods.
func boundaryAdjustedStop(lib *schedule.Library, s *types.Schedule, stop time.Time, window schedule.MaintenanceWindowChecker) time.Time {
	next, err := schedule.Evaluate(lib, s, stop.Add(time.Minute), window)
	if err == nil && next.State == types.StateRunning {
		return stop.Add(time.Minute)
	}
	return stop
}

func newInterval(period string, begin, end time.Time) Interval {
	seconds := int64(end.Sub(begin) / time.Second)
	if seconds < 60 {
		seconds = 60
	}
	hours := (seconds + 3599) / 3600
	return Interval{Period: period, Begin: begin, End: end, BillingSeconds: seconds, BillingHours: hours}
}

func atMinute(day time.Time, m types.MinuteOfDay) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), int(m)/60, int(m)%60, 0, 0, day.Location())
}

func sortedInstants(set map[int64]struct{}, loc *time.Location) []time.Time {
	out := make([]time.Time, 0, len(set))
	for sec := range set {
		out = append(out, time.Unix(sec, 0).In(loc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
