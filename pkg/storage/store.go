/*
Package storage implements the definition store and resource registry:
the schedule/period library, the per-resource registry,
and the legacy desired-state table kept only to feed the bulk cleanup
sweep (see DESIGN.md for why both exist).
*/
package storage

import (
	"errors"
	"time"

	"github.com/cuemby/fleetsched/pkg/types"
)

// Sentinel errors returned by Store implementations. Callers type-assert
// with errors.Is, never string matching.
var (
	ErrNotFound      = errors.New("storage: not found")
	ErrAlreadyExists = errors.New("storage: already exists")
	ErrInUse         = errors.New("storage: in use")
)

// LegacyDesiredState is one row of the legacy (service, account-region)
// desired-state table: a map of resource id to last-applied stored state,
// plus the bookkeeping the cleanup sweep needs to purge stale ids after two
// consecutive ticks of absence.
type LegacyDesiredState struct {
	Service       string
	AccountRegion string
	States        map[string]types.StoredState
	PurgeCandidates map[string]struct{}
	UpdatedAt     time.Time
}

// Store is the persistence boundary the core reads/writes through. Both
// backends (BoltDB, Postgres) implement it identically; callers never see
// the backend.
type Store interface {
	// Period library, keyed by name within the (type=period) namespace.
	PutPeriod(p *types.Period, overwrite bool) error
	GetPeriod(name string) (*types.Period, error)
	ListPeriods() ([]*types.Period, error)
	DeletePeriod(name string, referenced func(name string) []string) error

	// Schedule library, keyed by name within the (type=schedule) namespace.
	PutSchedule(s *types.Schedule, overwrite bool) error
	GetSchedule(name string) (*types.Schedule, error)
	ListSchedules() ([]*types.Schedule, error)
	DeleteSchedule(name string) error

	// Registry, keyed by (account, region, service, resource_id).
	PutRegistryRecord(r *types.RegistryRecord) error
	GetRegistryRecord(account, region, service, resourceID string) (*types.RegistryRecord, error)
	ListRegistryRecords(account, region, service string) ([]*types.RegistryRecord, error)
	DeleteRegistryRecord(account, region, service, resourceID string) error

	// Legacy desired-state table, kept only to feed the EC2/RDS per-
	// target scheduler's bulk cleanup sweep (see DESIGN.md Open Question
	// resolution): tolerant of eventual consistency by design.
	GetLegacyDesiredState(service, accountRegion string) (*LegacyDesiredState, error)
	PutLegacyDesiredState(row *LegacyDesiredState) error

	Close() error
}
