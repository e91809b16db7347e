package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/fleetsched/pkg/setexpr"
)

var (
	weekdayBuilder  = setexpr.NewNamesBuilder([]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}, setexpr.WithSignificantChars(3))
	monthBuilder    = setexpr.NewNamesBuilder([]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}, setexpr.WithOffset(1), setexpr.WithSignificantChars(3))
	monthdayBuilder = setexpr.NewRangeBuilder(1, 31)
)

// zoneCache memoizes time.LoadLocation results: valid zones are cached once
// resolved, invalid names are remembered so repeated lookups short-circuit
// without hitting the tzdata lookup path again.
type zoneCache struct {
	mu      sync.RWMutex
	valid   map[string]*time.Location
	invalid map[string]struct{}
}

var zones = &zoneCache{
	valid:   make(map[string]*time.Location),
	invalid: make(map[string]struct{}),
}

// WeekdaySet parses a weekday set expression (Monday-based, e.g. "mon-fri")
// into the domain's internal Set, exported for callers that need to
// translate a period's calendar fields into another scheduler's own cron
// dialect (see pkg/asgsched).
func WeekdaySet(expr string) (setexpr.Set, error) { return weekdayBuilder.Build(expr) }

// MonthSet parses a month set expression ("jan-mar") into 1-12 values.
func MonthSet(expr string) (setexpr.Set, error) { return monthBuilder.Build(expr) }

// MonthdaySet parses a monthday set expression ("1,15") into 1-31 values.
func MonthdaySet(expr string) (setexpr.Set, error) { return monthdayBuilder.Build(expr) }

// loadZone resolves an IANA timezone name, memoizing both hits and misses.
func loadZone(name string) (*time.Location, error) {
	zones.mu.RLock()
	if loc, ok := zones.valid[name]; ok {
		zones.mu.RUnlock()
		return loc, nil
	}
	if _, bad := zones.invalid[name]; bad {
		zones.mu.RUnlock()
		return nil, fmt.Errorf("schedule: unknown timezone %q", name)
	}
	zones.mu.RUnlock()

	loc, err := time.LoadLocation(name)
	zones.mu.Lock()
	defer zones.mu.Unlock()
	if err != nil {
		zones.invalid[name] = struct{}{}
		return nil, fmt.Errorf("schedule: unknown timezone %q: %w", name, err)
	}
	zones.valid[name] = loc
	return loc, nil
}
