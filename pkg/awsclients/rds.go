package awsclients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/cuemby/fleetsched/pkg/types"
)

// databaseService implements cloud.DatabaseService against RDS. Instances
// and clusters are discovered via the same tag-key scan but described and
// started/stopped through separate API families.
type databaseService struct {
	client *rds.Client
}

func (s *databaseService) DescribeTaggedARNs(ctx context.Context, tagKey string, visit func(arn string) error) error {
	for _, describe := range []func(context.Context, string, func(string) error) error{
		s.describeTaggedInstanceARNs,
		s.describeTaggedClusterARNs,
	} {
		if err := describe(ctx, tagKey, visit); err != nil {
			return err
		}
	}
	return nil
}

func (s *databaseService) describeTaggedInstanceARNs(ctx context.Context, tagKey string, visit func(string) error) error {
	paginator := rds.NewDescribeDBInstancesPaginator(s.client, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("awsclients: describe db instances: %w", err)
		}
		for _, inst := range page.DBInstances {
			if !hasRDSTag(inst.TagList, tagKey) {
				continue
			}
			if err := visit(aws.ToString(inst.DBInstanceArn)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *databaseService) describeTaggedClusterARNs(ctx context.Context, tagKey string, visit func(string) error) error {
	paginator := rds.NewDescribeDBClustersPaginator(s.client, &rds.DescribeDBClustersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("awsclients: describe db clusters: %w", err)
		}
		for _, cluster := range page.DBClusters {
			if !hasRDSTag(cluster.TagList, tagKey) {
				continue
			}
			if err := visit(aws.ToString(cluster.DBClusterArn)); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasRDSTag(tags []rdstypes.Tag, key string) bool {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return true
		}
	}
	return false
}

func (s *databaseService) DescribeInstances(ctx context.Context, arns []string) ([]types.ResourceRuntimeInfo, error) {
	out := make([]types.ResourceRuntimeInfo, 0, len(arns))
	for _, arn := range arns {
		resp, err := s.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{DBInstanceIdentifier: aws.String(arn)})
		if err != nil {
			return nil, fmt.Errorf("awsclients: describe db instance %s: %w", arn, err)
		}
		for _, inst := range resp.DBInstances {
			out = append(out, instanceRuntimeInfo(inst))
		}
	}
	return out, nil
}

func (s *databaseService) DescribeClusters(ctx context.Context, arns []string) ([]types.ResourceRuntimeInfo, error) {
	out := make([]types.ResourceRuntimeInfo, 0, len(arns))
	for _, arn := range arns {
		resp, err := s.client.DescribeDBClusters(ctx, &rds.DescribeDBClustersInput{DBClusterIdentifier: aws.String(arn)})
		if err != nil {
			return nil, fmt.Errorf("awsclients: describe db cluster %s: %w", arn, err)
		}
		for _, cluster := range resp.DBClusters {
			out = append(out, clusterRuntimeInfo(cluster))
		}
	}
	return out, nil
}

// clusterMemberEngines are the RDS-API engine names that mean "this
// DBInstance is really a member of a cluster, not a standalone instance":
// Aurora, Neptune, and DocumentDB all surface their cluster members through
// DescribeDBInstances too, and none of them can be started/stopped
// individually.
var clusterMemberEngines = map[string]bool{
	"aurora-mysql":      true,
	"aurora-postgresql": true,
	"neptune":           true,
	"docdb":             true,
}

func instanceRuntimeInfo(inst rdstypes.DBInstance) types.ResourceRuntimeInfo {
	tags := make(map[string]string, len(inst.TagList))
	for _, t := range inst.TagList {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	id := aws.ToString(inst.DBInstanceIdentifier)

	unsupported, reason := false, ""
	switch {
	case inst.ReadReplicaSourceDBInstanceIdentifier != nil:
		unsupported = true
		reason = fmt.Sprintf("rds instance %q is a read replica of %q", id, aws.ToString(inst.ReadReplicaSourceDBInstanceIdentifier))
	case len(inst.ReadReplicaDBInstanceIdentifiers) > 0:
		unsupported = true
		reason = fmt.Sprintf("rds instance %q is the source for read replica(s) %s", id, strings.Join(inst.ReadReplicaDBInstanceIdentifiers, ","))
	case clusterMemberEngines[aws.ToString(inst.Engine)]:
		unsupported = true
		reason = fmt.Sprintf("rds instance %q has engine %q, indicating it is a member of a cluster", id, aws.ToString(inst.Engine))
	}

	return types.ResourceRuntimeInfo{
		ID:                         id,
		ARN:                        aws.ToString(inst.DBInstanceArn),
		Kind:                       types.KindRDSInstance,
		State:                      normalizeRDSState(aws.ToString(inst.DBInstanceStatus)),
		InstanceType:               aws.ToString(inst.DBInstanceClass),
		Tags:                       tags,
		AllowResize:                !unsupported,
		PreferredMaintenanceWindow: aws.ToString(inst.PreferredMaintenanceWindow),
		Unsupported:                unsupported,
		UnsupportedReason:          reason,
	}
}

func clusterRuntimeInfo(cluster rdstypes.DBCluster) types.ResourceRuntimeInfo {
	tags := make(map[string]string, len(cluster.TagList))
	for _, t := range cluster.TagList {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return types.ResourceRuntimeInfo{
		ID:           aws.ToString(cluster.DBClusterIdentifier),
		ARN:          aws.ToString(cluster.DBClusterArn),
		Kind:         types.KindRDSCluster,
		State:        normalizeRDSState(aws.ToString(cluster.Status)),
		Tags:         tags,
		AllowResize:  false,
		IsCluster:    true,
	}
}

func normalizeRDSState(status string) types.ObservedState {
	switch status {
	case "available":
		return types.ObservedRunning
	case "stopped":
		return types.ObservedStopped
	case "deleting", "deleted":
		return types.ObservedTerminated
	default:
		// starting, stopping, backing-up, maintenance, etc.
		return types.ObservedTransitional
	}
}

func (s *databaseService) StartInstance(ctx context.Context, id string) error {
	_, err := s.client.StartDBInstance(ctx, &rds.StartDBInstanceInput{DBInstanceIdentifier: aws.String(id)})
	return err
}

func (s *databaseService) StopInstance(ctx context.Context, id, snapshotName string) error {
	input := &rds.StopDBInstanceInput{DBInstanceIdentifier: aws.String(id)}
	if snapshotName != "" {
		if err := s.deleteSnapshotIfExists(ctx, snapshotName); err != nil {
			return fmt.Errorf("awsclients: clear previous snapshot %s: %w", snapshotName, err)
		}
		input.DBSnapshotIdentifier = aws.String(snapshotName)
	}
	_, err := s.client.StopDBInstance(ctx, input)
	return err
}

// deleteSnapshotIfExists removes a same-named manual snapshot left over
// from a previous stop, since StopDBInstance refuses to reuse a snapshot
// identifier that already exists.
func (s *databaseService) deleteSnapshotIfExists(ctx context.Context, name string) error {
	_, err := s.client.DescribeDBSnapshots(ctx, &rds.DescribeDBSnapshotsInput{
		DBSnapshotIdentifier: aws.String(name),
		SnapshotType:         aws.String("manual"),
	})
	if err != nil {
		var notFound *rdstypes.DBSnapshotNotFoundFault
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	_, err = s.client.DeleteDBSnapshot(ctx, &rds.DeleteDBSnapshotInput{DBSnapshotIdentifier: aws.String(name)})
	return err
}

func (s *databaseService) StartCluster(ctx context.Context, id string) error {
	_, err := s.client.StartDBCluster(ctx, &rds.StartDBClusterInput{DBClusterIdentifier: aws.String(id)})
	return err
}

func (s *databaseService) StopCluster(ctx context.Context, id string) error {
	_, err := s.client.StopDBCluster(ctx, &rds.StopDBClusterInput{DBClusterIdentifier: aws.String(id)})
	return err
}

func (s *databaseService) AddTags(ctx context.Context, arn string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	list := make([]rdstypes.Tag, 0, len(tags))
	for k, v := range tags {
		list = append(list, rdstypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	_, err := s.client.AddTagsToResource(ctx, &rds.AddTagsToResourceInput{
		ResourceName: aws.String(arn),
		Tags:         list,
	})
	return err
}

func (s *databaseService) RemoveTags(ctx context.Context, arn string, tagKeys []string) error {
	if len(tagKeys) == 0 {
		return nil
	}
	_, err := s.client.RemoveTagsFromResource(ctx, &rds.RemoveTagsFromResourceInput{
		ResourceName: aws.String(arn),
		TagKeys:      tagKeys,
	})
	return err
}
