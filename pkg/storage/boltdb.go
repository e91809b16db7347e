package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cuemby/fleetsched/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketPeriods     = []byte("periods")
	bucketSchedules   = []byte("schedules")
	bucketRegistry    = []byte("registry")
	bucketLegacyState = []byte("legacy_desired_state")
)

// BoltStore implements Store against an embedded BoltDB file — the
// single-replica deployment mode, with no external database dependency.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "fleetsched.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPeriods, bucketSchedules, bucketRegistry, bucketLegacyState} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- Periods ---

func (s *BoltStore) PutPeriod(p *types.Period, overwrite bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPeriods)
		key := []byte(p.Name)
		if !overwrite && b.Get(key) != nil {
			return fmt.Errorf("period %q: %w", p.Name, ErrAlreadyExists)
		}
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) GetPeriod(name string) (*types.Period, error) {
	var p types.Period
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPeriods).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("period %q: %w", name, ErrNotFound)
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListPeriods() ([]*types.Period, error) {
	var out []*types.Period
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeriods).ForEach(func(_, v []byte) error {
			var p types.Period
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

// DeletePeriod removes a period, refusing when referenced still names it
// (the caller supplies the reference check since it needs the schedule
// library, which this package doesn't itself hold).
func (s *BoltStore) DeletePeriod(name string, referenced func(name string) []string) error {
	if referenced != nil {
		if refs := referenced(name); len(refs) > 0 {
			return fmt.Errorf("period %q: referenced by %v: %w", name, refs, ErrInUse)
		}
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPeriods)
		key := []byte(name)
		if b.Get(key) == nil {
			return fmt.Errorf("period %q: %w", name, ErrNotFound)
		}
		return b.Delete(key)
	})
}

// --- Schedules ---

func (s *BoltStore) PutSchedule(sched *types.Schedule, overwrite bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSchedules)
		key := []byte(sched.Name)
		if !overwrite && b.Get(key) != nil {
			return fmt.Errorf("schedule %q: %w", sched.Name, ErrAlreadyExists)
		}
		data, err := json.Marshal(sched)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) GetSchedule(name string) (*types.Schedule, error) {
	var sched types.Schedule
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSchedules).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("schedule %q: %w", name, ErrNotFound)
		}
		return json.Unmarshal(data, &sched)
	})
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

func (s *BoltStore) ListSchedules() ([]*types.Schedule, error) {
	var out []*types.Schedule
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSchedules).ForEach(func(_, v []byte) error {
			var sched types.Schedule
			if err := json.Unmarshal(v, &sched); err != nil {
				return err
			}
			out = append(out, &sched)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteSchedule(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSchedules)
		key := []byte(name)
		if b.Get(key) == nil {
			return fmt.Errorf("schedule %q: %w", name, ErrNotFound)
		}
		return b.Delete(key)
	})
}

// --- Registry ---

func registryKey(account, region, service, resourceID string) []byte {
	return []byte(strings.Join([]string{account, region, service, resourceID}, "|"))
}

func registryPrefix(account, region, service string) []byte {
	return []byte(strings.Join([]string{account, region, service, ""}, "|"))
}

func (s *BoltStore) PutRegistryRecord(r *types.RegistryRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRegistry)
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(registryKey(r.Account, r.Region, r.Service, r.ResourceID), data)
	})
}

func (s *BoltStore) GetRegistryRecord(account, region, service, resourceID string) (*types.RegistryRecord, error) {
	var r types.RegistryRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRegistry).Get(registryKey(account, region, service, resourceID))
		if data == nil {
			return fmt.Errorf("registry record %s/%s/%s/%s: %w", account, region, service, resourceID, ErrNotFound)
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRegistryRecords range-scans every record under (account, region,
// service), the cache-warming access pattern a per-target worker uses at
// the start of its tick.
func (s *BoltStore) ListRegistryRecords(account, region, service string) ([]*types.RegistryRecord, error) {
	var out []*types.RegistryRecord
	prefix := registryPrefix(account, region, service)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRegistry).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var r types.RegistryRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, &r)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) DeleteRegistryRecord(account, region, service, resourceID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRegistry).Delete(registryKey(account, region, service, resourceID))
	})
}

// --- Legacy desired-state table ---

func legacyKey(service, accountRegion string) []byte {
	return []byte(service + "|" + accountRegion)
}

func (s *BoltStore) GetLegacyDesiredState(service, accountRegion string) (*LegacyDesiredState, error) {
	var row LegacyDesiredState
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketLegacyState).Get(legacyKey(service, accountRegion))
		if data == nil {
			return fmt.Errorf("legacy desired state %s/%s: %w", service, accountRegion, ErrNotFound)
		}
		return json.Unmarshal(data, &row)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *BoltStore) PutLegacyDesiredState(row *LegacyDesiredState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketLegacyState).Put(legacyKey(row.Service, row.AccountRegion), data)
	})
}
