package storage

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/cuemby/fleetsched/pkg/types"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{db: sqlx.NewDb(db, "sqlmock")}, mock
}

// TestPostgresGetPeriodNotFound tests that a no-rows query surfaces
// ErrNotFound.
func TestPostgresGetPeriodNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT data FROM periods WHERE name = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := store.GetPeriod("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPeriod() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestPostgresGetPeriodFound tests a successful round trip through the
// jsonb column.
func TestPostgresGetPeriodFound(t *testing.T) {
	store, mock := newMockStore(t)
	data := []byte(`{"name":"business-hours","weekdays":"mon-fri"}`)
	mock.ExpectQuery(`SELECT data FROM periods WHERE name = \$1`).
		WithArgs("business-hours").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	p, err := store.GetPeriod("business-hours")
	if err != nil {
		t.Fatalf("GetPeriod() error = %v", err)
	}
	if p.Name != "business-hours" || p.Weekdays != "mon-fri" {
		t.Errorf("GetPeriod() = %+v, want business-hours/mon-fri", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestPostgresDeleteScheduleNotFound tests that a zero-rows-affected
// delete surfaces ErrNotFound.
func TestPostgresDeleteScheduleNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM schedules WHERE name = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteSchedule("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteSchedule() error = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestPostgresPutRegistryRecordUpsert tests that PutRegistryRecord issues
// an upsert (ON CONFLICT) rather than a plain insert.
func TestPostgresPutRegistryRecordUpsert(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO registry .* ON CONFLICT .* DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	r := &types.RegistryRecord{Account: "1", Region: "us-east-1", Service: "ec2", ResourceID: "i-abc"}
	if err := store.PutRegistryRecord(r); err != nil {
		t.Fatalf("PutRegistryRecord() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
