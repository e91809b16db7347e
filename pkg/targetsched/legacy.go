package targetsched

import (
	"errors"
	"time"

	"github.com/cuemby/fleetsched/pkg/storage"
	"github.com/cuemby/fleetsched/pkg/types"
)

// sweepLegacy retires stale rows in the legacy desired-state table: a
// resource id absent from the current observation for two consecutive
// sweeps is purged. The registry (storage.Store's Put/GetRegistryRecord)
// is the sole source of truth for what the engine last did; this sweep
// never seeds it, it only lets the legacy table catch up with reality.
func sweepLegacy(store storage.Store, service, account, region string, seen map[string]struct{}) error {
	key := account + "/" + region
	row, err := store.GetLegacyDesiredState(service, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		row = &storage.LegacyDesiredState{Service: service, AccountRegion: key}
	}
	if row.States == nil {
		row.States = make(map[string]types.StoredState)
	}
	return store.PutLegacyDesiredState(finishSweep(row, seen))
}

func finishSweep(row *storage.LegacyDesiredState, seen map[string]struct{}) *storage.LegacyDesiredState {
	if row.PurgeCandidates == nil {
		row.PurgeCandidates = make(map[string]struct{})
	}
	for id := range row.States {
		if _, ok := seen[id]; ok {
			delete(row.PurgeCandidates, id)
			continue
		}
		if _, already := row.PurgeCandidates[id]; already {
			delete(row.States, id)
			delete(row.PurgeCandidates, id)
		} else {
			row.PurgeCandidates[id] = struct{}{}
		}
	}
	row.UpdatedAt = time.Now()
	return row
}
