/*
Package schedule implements the time-zone-aware desired-state evaluator:
periods, schedules, and the evaluator itself. It holds no
storage or cloud dependency — Library is a plain in-memory index its
callers build from whatever they loaded from the store.
*/
package schedule

import (
	"fmt"

	"github.com/cuemby/fleetsched/pkg/types"
)

// Library is an in-memory, read-only index of periods and schedules,
// sufficient to evaluate desired state and to validate schedule→period
// references. It does not know how rows got there.
type Library struct {
	periods   map[string]*types.Period
	schedules map[string]*types.Schedule
}

// NewLibrary builds a Library from loaded rows. Schedules that reference a
// missing period are dropped from the returned Library; their names are
// returned as DefinitionInvalid-style diagnostics.
func NewLibrary(periods []*types.Period, schedules []*types.Schedule) (*Library, []error) {
	lib := &Library{
		periods:   make(map[string]*types.Period, len(periods)),
		schedules: make(map[string]*types.Schedule, len(schedules)),
	}

	var diagnostics []error
	for _, p := range periods {
		if err := p.Validate(); err != nil {
			diagnostics = append(diagnostics, fmt.Errorf("period %q: %w", p.Name, err))
			continue
		}
		lib.periods[p.Name] = p
	}

	for _, s := range schedules {
		if err := s.Validate(); err != nil {
			diagnostics = append(diagnostics, fmt.Errorf("schedule %q: %w", s.Name, err))
			continue
		}
		if _, err := loadZone(s.Timezone); err != nil {
			diagnostics = append(diagnostics, fmt.Errorf("schedule %q: %w", s.Name, err))
			continue
		}
		missing := false
		for _, ref := range s.Periods {
			if _, ok := lib.periods[ref.PeriodName]; !ok {
				diagnostics = append(diagnostics, fmt.Errorf("schedule %q: period %q: %w", s.Name, ref.PeriodName, ErrPeriodNotFound))
				missing = true
			}
		}
		if missing {
			continue
		}
		lib.schedules[s.Name] = s
	}

	return lib, diagnostics
}

// ErrPeriodNotFound is returned when a schedule references an undefined
// period name.
var ErrPeriodNotFound = fmt.Errorf("period not found")

// Period looks up a period by name.
func (l *Library) Period(name string) (*types.Period, bool) {
	p, ok := l.periods[name]
	return p, ok
}

// Schedule looks up a schedule by name.
func (l *Library) Schedule(name string) (*types.Schedule, bool) {
	s, ok := l.schedules[name]
	return s, ok
}

// Schedules returns every schedule currently in the library, for callers
// that need to iterate (usage reports, cleanup sweeps).
func (l *Library) Schedules() []*types.Schedule {
	out := make([]*types.Schedule, 0, len(l.schedules))
	for _, s := range l.schedules {
		out = append(out, s)
	}
	return out
}

// SchedulesReferencing returns the names of schedules whose period list
// includes periodName — used to enforce the "periods cannot be deleted
// while referenced" invariant and to build the usage inverted index.
func (l *Library) SchedulesReferencing(periodName string) []string {
	var names []string
	for _, s := range l.schedules {
		for _, ref := range s.Periods {
			if ref.PeriodName == periodName {
				names = append(names, s.Name)
				break
			}
		}
	}
	return names
}
