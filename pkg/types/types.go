/*
Package types defines the core data structures shared across fleetsched.

This package holds the scheduling domain model: periods, schedules, the
cloud-observed runtime snapshot of a resource, and the persistent registry
record that tracks what the engine last did to it. Nothing in this package
talks to a cloud API or a store — it is pure data plus the small amount of
validation that doesn't depend on external state.
*/
package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate runs the struct-tag checks (`validate:"required"`) declared on
// Period and Schedule. A single instance is reused across every call, per
// the library's own recommendation — it caches struct metadata internally.
var validate = validator.New()

// DesiredState is the closed sum type the evaluator returns for a resource.
// The source system used the string literals "running"/"stopped"; fleetsched
// uses a dedicated type instead (see DESIGN.md).
type DesiredState string

const (
	StateRunning DesiredState = "running"
	StateStopped DesiredState = "stopped"
)

// StoredState is the registry's closed sum type for the last state the
// engine recorded for a resource, including the bookkeeping-only values
// that have no corresponding DesiredState (unknown, retain_running,
// configured, error).
type StoredState string

const (
	StoredUnknown       StoredState = "unknown"
	StoredRunning       StoredState = "running"
	StoredStopped       StoredState = "stopped"
	StoredRetainRunning StoredState = "retain_running"
	StoredConfigured    StoredState = "configured"
	StoredError         StoredState = "error"
)

// RequestedAction is what the per-resource decision procedure decided to do.
type RequestedAction string

const (
	ActionStart     RequestedAction = "start"
	ActionStop      RequestedAction = "stop"
	ActionHibernate RequestedAction = "hibernate"
	ActionConfigure RequestedAction = "configure"
	ActionNone      RequestedAction = "do_nothing"
)

// ObservedState normalizes the cloud-specific instance state enum.
type ObservedState string

const (
	ObservedRunning      ObservedState = "running"
	ObservedStopped      ObservedState = "stopped"
	ObservedTransitional ObservedState = "transitional"
	ObservedTerminated   ObservedState = "terminated"
)

// Period is a recurring time window, optionally constrained by weekday,
// monthday and month sets. A zero-value Weekdays/Monthdays/Months means
// "unconstrained" for that field.
type Period struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`

	// BeginTime/EndTime are minute-of-day offsets, nil meaning "not set".
	BeginTime *MinuteOfDay `json:"begin_time,omitempty"`
	EndTime   *MinuteOfDay `json:"end_time,omitempty"`

	// Weekdays/Monthdays/Months are cron-like set expressions, e.g.
	// "mon-fri", "1,15", "jan-mar". Empty string means unconstrained.
	Weekdays  string `json:"weekdays,omitempty"`
	Monthdays string `json:"monthdays,omitempty"`
	Months    string `json:"months,omitempty"`

	// ConfiguredInStack marks a period as IaC-managed; non-empty means the
	// admin surface must refuse edits (enforced by that collaborator, not
	// here — the core only carries the marker through).
	ConfiguredInStack string `json:"configured_in_stack,omitempty"`
}

// MinuteOfDay is a minute-resolution time of day, 0 (00:00) to 1439 (23:59).
type MinuteOfDay int

// HasCalendarConstraint reports whether the period restricts by weekday,
// monthday or month, as opposed to only by time of day.
func (p *Period) HasCalendarConstraint() bool {
	return p.Weekdays != "" || p.Monthdays != "" || p.Months != ""
}

// Validate checks a period's invariants: it needs at least one time or
// calendar field, and if both times are given begin must be <= end.
func (p *Period) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrPeriodMissingName, err)
	}
	if p.BeginTime == nil && p.EndTime == nil && !p.HasCalendarConstraint() {
		return ErrPeriodEmpty
	}
	if p.BeginTime != nil && p.EndTime != nil && *p.BeginTime > *p.EndTime {
		return ErrPeriodBeginAfterEnd
	}
	return nil
}

// PeriodRef binds a period to a schedule, optionally pinning a target
// instance/DB type for the period it names.
type PeriodRef struct {
	PeriodName       string `json:"period_name"`
	TargetInstanceType string `json:"target_instance_type,omitempty"`
}

// Schedule is a named, time-zoned ordered list of periods plus policy flags.
type Schedule struct {
	Name     string `json:"name" validate:"required"`
	Timezone string `json:"timezone" validate:"required"`

	Periods []PeriodRef `json:"periods"`

	Enforced           bool `json:"enforced"`
	RetainRunning      bool `json:"retain_running"`
	Hibernate          bool `json:"hibernate"`
	StopNewInstances   bool `json:"stop_new_instances"`
	UseMaintenanceWindow bool `json:"use_maintenance_window"`

	// OverrideStatus, when non-nil, bypasses period evaluation entirely.
	OverrideStatus *DesiredState `json:"override_status,omitempty"`

	SSMMaintenanceWindows []string `json:"ssm_maintenance_window,omitempty"`
	ConfiguredInStack     string   `json:"configured_in_stack,omitempty"`
	Description           string   `json:"description,omitempty"`
}

// Validate checks schedule-level invariants that don't require the period
// library (timezone resolution and period-name lookups happen in the
// schedule package, which owns the library).
func (s *Schedule) Validate() error {
	if err := validate.Struct(s); err != nil {
		if s.Name == "" {
			return fmt.Errorf("%w: %v", ErrScheduleMissingName, err)
		}
		return fmt.Errorf("%w: %v", ErrScheduleMissingTimezone, err)
	}
	return nil
}

// NewSchedule fills in the documented defaults (stop_new_instances
// defaults true) the way the wire format requires it.
func NewSchedule(name, timezone string) *Schedule {
	return &Schedule{
		Name:             name,
		Timezone:         timezone,
		StopNewInstances: true,
	}
}

// ResourceKind distinguishes the per-target scheduler variants.
type ResourceKind string

const (
	KindEC2Instance   ResourceKind = "ec2"
	KindRDSInstance   ResourceKind = "rds-instance"
	KindRDSCluster    ResourceKind = "rds-cluster"
	KindAutoScaling   ResourceKind = "autoscaling"
)

// ResourceRuntimeInfo is the transient snapshot read from the cloud API on
// every tick — never persisted as-is.
type ResourceRuntimeInfo struct {
	ID      string
	ARN     string
	Name    string
	Account string
	Region  string
	Kind    ResourceKind

	State        ObservedState
	InstanceType string
	Tags         map[string]string
	ScheduleName string

	// AllowResize is false for resource kinds that must refuse a resize at
	// act time (RDS read replicas / aurora members can't resize through
	// this path).
	AllowResize bool

	// Unsupported marks a resource that carries the schedule tag but must
	// never be started or stopped through this path (an RDS read replica,
	// the source of a read replica, or an Aurora/Neptune/DocumentDB cluster
	// member instance). UnsupportedReason explains why, for the resulting
	// per-resource error.
	Unsupported       bool
	UnsupportedReason string

	// PreferredMaintenanceWindow is the RDS-style "ddd:HH:MM-ddd:HH:MM"
	// string, empty if the resource has none.
	PreferredMaintenanceWindow string

	// IsCluster marks an RDS cluster (vs. a standalone instance).
	IsCluster bool

	// ASG-only fields.
	MinSize     int32
	DesiredSize int32
	MaxSize     int32
}

// IsRunning reports whether the observed state counts as "running" for the
// decision procedure (transitional counts as running for act-or-not
// purposes since an action is already in flight).
func (r *ResourceRuntimeInfo) IsRunning() bool {
	return r.State == ObservedRunning || r.State == ObservedTransitional
}

// RegistryRecord is the persistent per-resource record in the registry
// table.
type RegistryRecord struct {
	Account      string      `json:"account"`
	Region       string      `json:"region"`
	Service      string      `json:"service"`
	ResourceID   string      `json:"resource_id"`
	ARN          string      `json:"arn"`
	Name         string      `json:"name"`
	ScheduleName string      `json:"schedule_name"`
	StoredState  StoredState `json:"stored_state"`

	LastConfigured *ASGConfiguration `json:"last_configured,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// ASGConfiguration is the fingerprint of the last scheduled-action install
// for an auto-scaling group.
type ASGConfiguration struct {
	MinSize      int32     `json:"min"`
	DesiredSize  int32     `json:"desired"`
	MaxSize      int32     `json:"max"`
	ScheduleHash string    `json:"schedule_hash"`
	ValidUntil   time.Time `json:"valid_until"`
}

// DesiredStateTriple is the evaluator's return value.
type DesiredStateTriple struct {
	State        DesiredState
	TargetType   string // empty means "no resize requested"
	ActivePeriod string // empty means none active / override / stopped
}

// ResourceTarget identifies one (account, region, service) partition of the
// fleet — the unit the orchestrator fans out to.
type ResourceTarget struct {
	Account string
	Region  string
	Service ResourceKind
}
