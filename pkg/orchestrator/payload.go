package orchestrator

import (
	"encoding/json"

	"github.com/cuemby/fleetsched/pkg/types"
)

// DefaultPayloadThresholdBytes bounds the serialized worker request the
// orchestrator is willing to ship inline before falling back to letting
// the worker reload its schedule/period snapshot from the store directly.
// Sized after a typical serverless function's invocation payload limit.
const DefaultPayloadThresholdBytes = 200000

// workerRequest is the per-target snapshot the orchestrator would hand a
// remote worker invocation. In this single-binary deployment every worker
// already shares the in-memory library directly, so fitToThreshold exists
// to decide, and report, whether a target's view would survive a
// transport-bounded dispatch — not to gate correctness.
type workerRequest struct {
	Target    types.ResourceTarget `json:"target"`
	Schedules []*types.Schedule    `json:"schedules"`
	Periods   []*types.Period      `json:"periods"`
}

func (r *workerRequest) encodedSize() (int, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// fitToThreshold strips periods, then whole schedules, from req until its
// JSON encoding is at or under threshold bytes. It reports reload=true
// when even an empty request doesn't help — meaning no inline snapshot
// would fit, and the worker must rely on reloading straight from the
// store.
func fitToThreshold(req *workerRequest, threshold int) (reload bool, err error) {
	size, err := req.encodedSize()
	if err != nil {
		return false, err
	}
	if size <= threshold {
		return false, nil
	}
	for len(req.Periods) > 0 {
		req.Periods = req.Periods[:len(req.Periods)-1]
		if size, err = req.encodedSize(); err != nil {
			return false, err
		}
		if size <= threshold {
			return false, nil
		}
	}
	for len(req.Schedules) > 0 {
		req.Schedules = req.Schedules[:len(req.Schedules)-1]
		if size, err = req.encodedSize(); err != nil {
			return false, err
		}
		if size <= threshold {
			return false, nil
		}
	}
	return true, nil
}
