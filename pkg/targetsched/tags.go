package targetsched

import "github.com/cuemby/fleetsched/pkg/types"

// TagPolicy is the operator-configured "start tags"/"stop tags" maps
// applied after a successful start or stop. A key present in both sets
// is always written with the value for whichever transition just
// happened.
type TagPolicy struct {
	StartTags map[string]string
	StopTags  map[string]string
}

// Reconcile returns the tags to add and the keys to remove for one
// completed action. Starting removes any stop-only tag key (a key also
// present in StartTags is kept, updated to its start value); stopping is
// symmetric.
func (p TagPolicy) Reconcile(action types.RequestedAction) (add map[string]string, remove []string) {
	switch action {
	case types.ActionStart:
		return p.StartTags, keysOnlyIn(p.StopTags, p.StartTags)
	case types.ActionStop, types.ActionHibernate:
		return p.StopTags, keysOnlyIn(p.StartTags, p.StopTags)
	default:
		return nil, nil
	}
}

func keysOnlyIn(from, exclude map[string]string) []string {
	out := make([]string, 0, len(from))
	for k := range from {
		if _, in := exclude[k]; !in {
			out = append(out, k)
		}
	}
	return out
}
