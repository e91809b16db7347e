/*
Package storage implements the definition store and resource registry
described in the scheduling engine's data model. Two backends satisfy
the same Store interface: BoltStore for a single-replica embedded
deployment, and PostgresStore for a shared, HA deployment where several
orchestrator replicas read and write the same tables.

# Architecture

	┌─────────────────────── STORE ───────────────────────────┐
	│                                                           │
	│  ┌───────────────────┐        ┌───────────────────────┐ │
	│  │     BoltStore      │        │     PostgresStore      │ │
	│  │  <dataDir>/         │        │  pgx pool + sqlx        │ │
	│  │  fleetsched.db      │        │  golang-migrate schema  │ │
	│  └─────────┬──────────┘        └───────────┬────────────┘ │
	│            │                                │              │
	│            └───────────────┬────────────────┘              │
	│                             ▼                               │
	│                  ┌───────────────────┐                     │
	│                  │   Store interface  │                     │
	│                  └───────────────────┘                     │
	└───────────────────────────────────────────────────────────┘

# Logical tables

  - periods: the period library, keyed by name.
  - schedules: the schedule library, keyed by name.
  - registry: per-resource record, keyed by (account, region, service,
    resource_id); range-scannable by (account, region, service) to warm a
    worker's per-target cache.
  - legacy_desired_state: one row per (service, account-region) holding a
    resource_id → stored_state map, kept only to feed the bulk cleanup
    sweep the EC2/RDS scheduler runs against resources that disappeared
    from the tagged-resource enumeration (see DESIGN.md's Open Question
    resolution for why the registry didn't fully replace this table).

# Consistency

The period/schedule library and the registry are read with strong
consistency in both backends (BoltDB transactions are always consistent;
PostgresStore issues reads in the default read-committed isolation level,
sufficient since rows are single-row atomic). The legacy table tolerates
eventual consistency — its purge logic already amortizes staleness over
two ticks.

# Errors

Both backends return the sentinel errors in this package (ErrNotFound,
ErrAlreadyExists, ErrInUse) wrapped with context via fmt.Errorf("%w":
callers compare with errors.Is, never by inspecting message text.
*/
package storage
