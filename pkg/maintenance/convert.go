/*
Package maintenance implements the maintenance-window context: it
converts an RDS-style preferred-maintenance-window string into a synthetic
UTC schedule, and caches SSM-style maintenance-window lookups behind a
small interface so the evaluator never talks to Redis or SSM directly.
*/
package maintenance

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/fleetsched/pkg/types"
)

var windowWeekdays = map[string]int{
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
}

const leadMinutes = 10

// ParsePreferredWindow converts an RDS preferred-maintenance-window string
// ("ddd:HH:MM-ddd:HH:MM") into a synthetic UTC schedule: the begin time is
// shifted 10 minutes earlier (wrapping to the previous weekday if that
// crosses midnight), and the window becomes one period if start-day
// equals end-day, or two periods spanning midnight otherwise. The returned
// periods must be registered in the same schedule.Library as the schedule
// before it can be evaluated.
func ParsePreferredWindow(window string) (*types.Schedule, []*types.Period, error) {
	start, end, ok := strings.Cut(window, "-")
	if !ok {
		return nil, nil, fmt.Errorf("maintenance: malformed window %q", window)
	}
	startDay, startMinute, err := parseWindowPoint(start)
	if err != nil {
		return nil, nil, fmt.Errorf("maintenance: window %q: %w", window, err)
	}
	endDay, endMinute, err := parseWindowPoint(end)
	if err != nil {
		return nil, nil, fmt.Errorf("maintenance: window %q: %w", window, err)
	}

	leadDay, leadMinute := shiftEarlier(startDay, startMinute, leadMinutes)

	// The provided end time is exclusive (RDS windows run up to but not
	// including it), while a period's end_time is inclusive, so the period
	// must end one minute earlier than the window's stated end.
	endDay, endMinute = shiftEarlier(endDay, endMinute, 1)

	sched := types.NewSchedule(window, "UTC")
	sched.Description = "synthesized from preferred maintenance window " + window

	if leadDay == endDay {
		begin := types.MinuteOfDay(leadMinute)
		endM := types.MinuteOfDay(endMinute)
		p := &types.Period{
			Name:      window,
			BeginTime: &begin,
			EndTime:   &endM,
			Weekdays:  leadDay,
		}
		sched.Periods = []types.PeriodRef{{PeriodName: p.Name}}
		return sched, []*types.Period{p}, nil
	}

	// Midnight-spanning window: one period from leadMinute to 23:59 on
	// leadDay, another from 00:00 to endMinute on endDay.
	begin := types.MinuteOfDay(leadMinute)
	endOfDay := types.MinuteOfDay(23*60 + 59)
	first := &types.Period{
		Name:      window + "-part1",
		BeginTime: &begin,
		EndTime:   &endOfDay,
		Weekdays:  leadDay,
	}
	zero := types.MinuteOfDay(0)
	endM := types.MinuteOfDay(endMinute)
	second := &types.Period{
		Name:      window + "-part2",
		BeginTime: &zero,
		EndTime:   &endM,
		Weekdays:  endDay,
	}
	sched.Periods = []types.PeriodRef{{PeriodName: first.Name}, {PeriodName: second.Name}}
	return sched, []*types.Period{first, second}, nil
}

func parseWindowPoint(s string) (day string, minuteOfDay int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return "", 0, fmt.Errorf("malformed window point %q", s)
	}
	day = strings.ToLower(parts[0])
	if _, ok := windowWeekdays[day]; !ok {
		return "", 0, fmt.Errorf("unknown weekday %q", parts[0])
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return "", 0, fmt.Errorf("malformed hour %q", parts[1])
	}
	minute, err := strconv.Atoi(parts[2])
	if err != nil || minute < 0 || minute > 59 {
		return "", 0, fmt.Errorf("malformed minute %q", parts[2])
	}
	return day, hour*60 + minute, nil
}

// shiftEarlier subtracts lead minutes from (day, minute), wrapping to the
// previous weekday if the shift would go negative.
func shiftEarlier(day string, minute, lead int) (string, int) {
	shifted := minute - lead
	if shifted >= 0 {
		return day, shifted
	}
	return previousWeekday(day), shifted + 24*60
}

var weekdayOrder = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func previousWeekday(day string) string {
	idx := windowWeekdays[day]
	return weekdayOrder[(idx+6)%7]
}
