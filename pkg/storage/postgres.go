package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/cuemby/fleetsched/pkg/types"
)

// PostgresStore implements Store against a shared Postgres database, for
// the HA deployment mode where several orchestrator replicas (one leader,
// the rest standby) need the same library/registry view.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens a connection pool against dsn (a postgres://
// URL), applies pending migrations, and returns a ready Store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	db := sqlx.NewDb(sqlDB, "pgx")
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// --- Periods ---

func (s *PostgresStore) PutPeriod(p *types.Period, overwrite bool) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	query := `INSERT INTO periods (name, data) VALUES ($1, $2)`
	if overwrite {
		query += ` ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data`
	}
	_, err = s.db.Exec(query, p.Name, data)
	if err != nil && !overwrite && isUniqueViolation(err) {
		return fmt.Errorf("period %q: %w", p.Name, ErrAlreadyExists)
	}
	return err
}

func (s *PostgresStore) GetPeriod(name string) (*types.Period, error) {
	var data []byte
	err := s.db.Get(&data, `SELECT data FROM periods WHERE name = $1`, name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("period %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var p types.Period
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListPeriods() ([]*types.Period, error) {
	var rows [][]byte
	if err := s.db.Select(&rows, `SELECT data FROM periods`); err != nil {
		return nil, err
	}
	out := make([]*types.Period, 0, len(rows))
	for _, data := range rows {
		var p types.Period
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, nil
}

func (s *PostgresStore) DeletePeriod(name string, referenced func(name string) []string) error {
	if referenced != nil {
		if refs := referenced(name); len(refs) > 0 {
			return fmt.Errorf("period %q: referenced by %v: %w", name, refs, ErrInUse)
		}
	}
	res, err := s.db.Exec(`DELETE FROM periods WHERE name = $1`, name)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("period %q: %w", name, ErrNotFound))
}

// --- Schedules ---

func (s *PostgresStore) PutSchedule(sched *types.Schedule, overwrite bool) error {
	data, err := json.Marshal(sched)
	if err != nil {
		return err
	}
	query := `INSERT INTO schedules (name, data) VALUES ($1, $2)`
	if overwrite {
		query += ` ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data`
	}
	_, err = s.db.Exec(query, sched.Name, data)
	if err != nil && !overwrite && isUniqueViolation(err) {
		return fmt.Errorf("schedule %q: %w", sched.Name, ErrAlreadyExists)
	}
	return err
}

func (s *PostgresStore) GetSchedule(name string) (*types.Schedule, error) {
	var data []byte
	err := s.db.Get(&data, `SELECT data FROM schedules WHERE name = $1`, name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var sched types.Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return nil, err
	}
	return &sched, nil
}

func (s *PostgresStore) ListSchedules() ([]*types.Schedule, error) {
	var rows [][]byte
	if err := s.db.Select(&rows, `SELECT data FROM schedules`); err != nil {
		return nil, err
	}
	out := make([]*types.Schedule, 0, len(rows))
	for _, data := range rows {
		var sched types.Schedule
		if err := json.Unmarshal(data, &sched); err != nil {
			return nil, err
		}
		out = append(out, &sched)
	}
	return out, nil
}

func (s *PostgresStore) DeleteSchedule(name string) error {
	res, err := s.db.Exec(`DELETE FROM schedules WHERE name = $1`, name)
	if err != nil {
		return err
	}
	return requireAffected(res, fmt.Errorf("schedule %q: %w", name, ErrNotFound))
}

// --- Registry ---

func (s *PostgresStore) PutRegistryRecord(r *types.RegistryRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO registry (account, region, service, resource_id, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account, region, service, resource_id) DO UPDATE SET data = EXCLUDED.data
	`, r.Account, r.Region, r.Service, r.ResourceID, data)
	return err
}

func (s *PostgresStore) GetRegistryRecord(account, region, service, resourceID string) (*types.RegistryRecord, error) {
	var data []byte
	err := s.db.Get(&data, `
		SELECT data FROM registry WHERE account = $1 AND region = $2 AND service = $3 AND resource_id = $4
	`, account, region, service, resourceID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("registry record %s/%s/%s/%s: %w", account, region, service, resourceID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var r types.RegistryRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListRegistryRecords(account, region, service string) ([]*types.RegistryRecord, error) {
	var rows [][]byte
	err := s.db.Select(&rows, `
		SELECT data FROM registry WHERE account = $1 AND region = $2 AND service = $3
	`, account, region, service)
	if err != nil {
		return nil, err
	}
	out := make([]*types.RegistryRecord, 0, len(rows))
	for _, data := range rows {
		var r types.RegistryRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, nil
}

func (s *PostgresStore) DeleteRegistryRecord(account, region, service, resourceID string) error {
	_, err := s.db.Exec(`
		DELETE FROM registry WHERE account = $1 AND region = $2 AND service = $3 AND resource_id = $4
	`, account, region, service, resourceID)
	return err
}

// --- Legacy desired-state table ---

func (s *PostgresStore) GetLegacyDesiredState(service, accountRegion string) (*LegacyDesiredState, error) {
	var data []byte
	err := s.db.Get(&data, `
		SELECT data FROM legacy_desired_state WHERE service = $1 AND account_region = $2
	`, service, accountRegion)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("legacy desired state %s/%s: %w", service, accountRegion, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var row LegacyDesiredState
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *PostgresStore) PutLegacyDesiredState(row *LegacyDesiredState) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO legacy_desired_state (service, account_region, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (service, account_region) DO UPDATE SET data = EXCLUDED.data
	`, row.Service, row.AccountRegion, data)
	return err
}

// requireAffected turns a zero-rows-affected result into notFoundErr.
func requireAffected(res sql.Result, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

// isUniqueViolation checks for Postgres error code 23505 without importing
// the full pgconn error type at call sites.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
