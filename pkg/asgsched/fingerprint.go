package asgsched

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/cuemby/fleetsched/pkg/schedule"
	"github.com/cuemby/fleetsched/pkg/types"
)

// fingerprintInput is the canonical structure hashed into H: the schedule
// itself plus every period it references, sorted by name so the hash is
// stable regardless of the order periods were defined in the library.
type fingerprintInput struct {
	Schedule *types.Schedule `json:"schedule"`
	Periods  []*types.Period `json:"periods"`
}

// fingerprint computes H = hash(schedule_definition, referenced periods),
// stdlib crypto/sha256 (DESIGN.md: no ecosystem library improves on hashing
// a canonical encoding for a stability check).
func fingerprint(lib *schedule.Library, s *types.Schedule) (string, error) {
	periods := make([]*types.Period, 0, len(s.Periods))
	for _, ref := range s.Periods {
		if p, ok := lib.Period(ref.PeriodName); ok {
			periods = append(periods, p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Name < periods[j].Name })

	encoded, err := json.Marshal(fingerprintInput{Schedule: s, Periods: periods})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
