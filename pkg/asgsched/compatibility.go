package asgsched

import (
	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/types"
)

// CheckCompatibility reports whether s can be installed as scheduled
// actions on an auto-scaling group, without installing anything — exposed
// for an external admin surface to validate a schedule before binding it
// to a group.
func CheckCompatibility(lib *schedule.Library, s *types.Schedule) (supported bool, reason string) {
	if len(s.Periods) == 0 {
		return false, "schedule has no periods; nothing to install"
	}
	if s.OverrideStatus != nil {
		return false, "override_status has no ASG equivalent (groups are reconfigured, not started/stopped)"
	}
	for _, ref := range s.Periods {
		p, ok := lib.Period(ref.PeriodName)
		if !ok {
			return false, "schedule references a period not present in the library: " + ref.PeriodName
		}
		if p.BeginTime == nil && p.EndTime == nil {
			return false, "period " + p.Name + " has neither begin nor end time"
		}
	}
	return true, ""
}
