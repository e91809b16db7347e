/*
Package cloud declares the control-plane clients the scheduling engine
consumes, as capabilities rather than concrete SDK types. Nothing in
this package imports an AWS SDK; the awsclients
package supplies concrete implementations, and a test double is just
another implementation of the same small interfaces.
*/
package cloud

import (
	"context"

	"github.com/cuemby/fleetsched/pkg/types"
)

// ComputeService is the VM capability: EC2 in the current implementation,
// but any compute provider with start/stop/resize and tag-based discovery
// fits the same shape.
type ComputeService interface {
	// DescribeTagged visits every resource carrying tagKey, lazily —
	// implementations must paginate without buffering the whole fleet.
	DescribeTagged(ctx context.Context, tagKey string, visit func(types.ResourceRuntimeInfo) error) error
	Start(ctx context.Context, ids []string) error
	Stop(ctx context.Context, ids []string, hibernate bool) error
	ModifyType(ctx context.Context, id, newInstanceType string) error
	CreateTags(ctx context.Context, ids []string, tags map[string]string) error
	DeleteTags(ctx context.Context, ids []string, tagKeys []string) error
}

// DatabaseService is the RDS capability: instances and clusters are
// distinct start/stop targets, and a stop may request a pre-stop snapshot.
type DatabaseService interface {
	DescribeTaggedARNs(ctx context.Context, tagKey string, visit func(arn string) error) error
	DescribeInstances(ctx context.Context, arns []string) ([]types.ResourceRuntimeInfo, error)
	DescribeClusters(ctx context.Context, arns []string) ([]types.ResourceRuntimeInfo, error)
	StartInstance(ctx context.Context, id string) error
	// StopInstance's snapshotName is empty to skip the pre-stop snapshot.
	// RDS instances take a final snapshot as part of the stop call itself.
	StopInstance(ctx context.Context, id, snapshotName string) error
	StartCluster(ctx context.Context, id string) error
	// Aurora clusters have no equivalent "snapshot on stop" parameter, so
	// StopCluster never takes one; a caller that needs a cluster snapshot
	// takes it separately before stopping.
	StopCluster(ctx context.Context, id string) error
	AddTags(ctx context.Context, arn string, tags map[string]string) error
	RemoveTags(ctx context.Context, arn string, tagKeys []string) error
}

// ScheduledAction is a single cron-triggered MDM-setting action installed
// on an auto-scaling group.
type ScheduledAction struct {
	Name            string
	Recurrence      string // 5-field cron expression, provider-native weekday numbering
	MinSize         *int32
	DesiredCapacity *int32
	MaxSize         *int32
}

// ASGService is the auto-scaling-group capability: a *different* shape
// from ComputeService/DatabaseService per the Design Note — ASGs are
// configured, not started/stopped.
type ASGService interface {
	DescribeTagged(ctx context.Context, tagKey string, visit func(types.ResourceRuntimeInfo) error) error
	DescribeScheduledActions(ctx context.Context, groupName, namePrefix string) ([]ScheduledAction, error)
	BatchPutScheduledActions(ctx context.Context, groupName string, actions []ScheduledAction) error
	BatchDeleteScheduledActions(ctx context.Context, groupName string, names []string) error
	CreateOrUpdateTags(ctx context.Context, groupName string, tags map[string]string) error
}

// RoleHandle is the opaque "assumed role handle" a worker receives from
// the identity broker: typed clients already bound to one account/region.
type RoleHandle interface {
	Compute() ComputeService
	Database() DatabaseService
	ASG() ASGService
	Account() string
	Region() string
}

// IdentityBroker is the cross-account credential collaborator, consumed
// only through this interface.
type IdentityBroker interface {
	AssumeRole(ctx context.Context, account, region string) (RoleHandle, error)
}
