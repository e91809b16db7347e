/*
Package asgsched implements the auto-scaling-group scheduler: ASGs
are never started or stopped directly; instead the
engine installs cron-triggered scheduled actions that set min/desired/max
at period boundaries, keyed off an MDM ("min-desired-max") tag and a
configuration fingerprint that detects when a reconfigure is needed.

Grounded on original_source/.../scheduling/asg/asg_service.py and its
cron/asg.py sibling for the cron-translation rules.
*/
package asgsched

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/setexpr"
	"github.com/cuemby/fleetsched/pkg/types"
)

// cronFields is a 5-field Unix cron expression's components, in the order
// autoscaling.BatchPutScheduledUpdateGroupAction expects them joined.
type cronFields struct {
	minute, hour, dom, mon, dow string
}

func (f cronFields) String() string {
	return fmt.Sprintf("%s %s %s %s %s", f.minute, f.hour, f.dom, f.mon, f.dow)
}

// beginCron translates a period's begin time and calendar fields into a
// provider-native cron expression.
func beginCron(p *types.Period) (string, error) {
	if p.BeginTime == nil {
		return "", nil
	}
	return periodCron(p, *p.BeginTime)
}

// endCron is the same translation for the period's end time.
func endCron(p *types.Period) (string, error) {
	if p.EndTime == nil {
		return "", nil
	}
	return periodCron(p, *p.EndTime)
}

func periodCron(p *types.Period, minute types.MinuteOfDay) (string, error) {
	dow, err := dowField(p.Weekdays)
	if err != nil {
		return "", fmt.Errorf("asgsched: weekdays: %w", err)
	}
	mon, err := monField(p.Months)
	if err != nil {
		return "", fmt.Errorf("asgsched: months: %w", err)
	}
	dom, err := domField(p.Monthdays)
	if err != nil {
		return "", fmt.Errorf("asgsched: monthdays: %w", err)
	}
	f := cronFields{
		minute: fmt.Sprintf("%d", int(minute)%60),
		hour:   fmt.Sprintf("%d", int(minute)/60),
		dom:    dom,
		mon:    mon,
		dow:    dow,
	}
	return f.String(), nil
}

// dowField converts a Monday-based weekday set expression ("mon-fri") into
// the provider's Sunday=0 cron day-of-week field.
func dowField(expr string) (string, error) {
	if expr == "" {
		return "*", nil
	}
	set, err := schedule.WeekdaySet(expr)
	if err != nil {
		return "", err
	}
	values := make([]int, 0, len(set))
	for mondayBased := range set {
		values = append(values, (mondayBased+1)%7)
	}
	return joinSorted(values), nil
}

// monField passes the month set through unchanged: both the internal
// domain and cron's month-of-year field are 1-12.
func monField(expr string) (string, error) {
	if expr == "" {
		return "*", nil
	}
	set, err := schedule.MonthSet(expr)
	if err != nil {
		return "", err
	}
	return joinSet(set), nil
}

// domField passes the monthday set through unchanged: both domains are 1-31.
func domField(expr string) (string, error) {
	if expr == "" {
		return "*", nil
	}
	set, err := schedule.MonthdaySet(expr)
	if err != nil {
		return "", err
	}
	return joinSet(set), nil
}

func joinSet(s setexpr.Set) string {
	values := make([]int, 0, len(s))
	for v := range s {
		values = append(values, v)
	}
	return joinSorted(values)
}

func joinSorted(values []int) string {
	sort.Ints(values)
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}
