package awsclients

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/cuemby/fleetsched/pkg/types"
)

// computeService implements cloud.ComputeService against EC2.
type computeService struct {
	client *ec2.Client
}

func (s *computeService) DescribeTagged(ctx context.Context, tagKey string, visit func(types.ResourceRuntimeInfo) error) error {
	paginator := ec2.NewDescribeInstancesPaginator(s.client, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{{Name: aws.String("tag-key"), Values: []string{tagKey}}},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("awsclients: describe ec2 instances: %w", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				if err := visit(toRuntimeInfo(instance, tagKey)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func toRuntimeInfo(instance ec2types.Instance, scheduleTagKey string) types.ResourceRuntimeInfo {
	tags := make(map[string]string, len(instance.Tags))
	var scheduleName string
	for _, t := range instance.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		if aws.ToString(t.Key) == scheduleTagKey {
			scheduleName = aws.ToString(t.Value)
		}
	}
	return types.ResourceRuntimeInfo{
		ID:           aws.ToString(instance.InstanceId),
		Kind:         types.KindEC2Instance,
		State:        normalizeEC2State(instance.State),
		InstanceType: string(instance.InstanceType),
		Tags:         tags,
		ScheduleName: scheduleName,
		AllowResize:  true,
	}
}

func normalizeEC2State(state *ec2types.InstanceState) types.ObservedState {
	if state == nil {
		return types.ObservedTerminated
	}
	switch state.Name {
	case ec2types.InstanceStateNameRunning:
		return types.ObservedRunning
	case ec2types.InstanceStateNameStopped:
		return types.ObservedStopped
	case ec2types.InstanceStateNameTerminated:
		return types.ObservedTerminated
	default:
		// pending, stopping, shutting-down
		return types.ObservedTransitional
	}
}

func (s *computeService) Start(ctx context.Context, ids []string) error {
	_, err := s.client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids})
	return err
}

func (s *computeService) Stop(ctx context.Context, ids []string, hibernate bool) error {
	_, err := s.client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: ids,
		Hibernate:   aws.Bool(hibernate),
	})
	return err
}

func (s *computeService) ModifyType(ctx context.Context, id, newInstanceType string) error {
	_, err := s.client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
		InstanceId:   aws.String(id),
		InstanceType: &ec2types.AttributeValue{Value: aws.String(newInstanceType)},
	})
	return err
}

func (s *computeService) CreateTags(ctx context.Context, ids []string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := s.client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: ids,
		Tags:      toEC2Tags(tags),
	})
	return err
}

func (s *computeService) DeleteTags(ctx context.Context, ids []string, tagKeys []string) error {
	if len(tagKeys) == 0 {
		return nil
	}
	tags := make([]ec2types.Tag, len(tagKeys))
	for i, k := range tagKeys {
		tags[i] = ec2types.Tag{Key: aws.String(k)}
	}
	_, err := s.client.DeleteTags(ctx, &ec2.DeleteTagsInput{
		Resources: ids,
		Tags:      tags,
	})
	return err
}

func toEC2Tags(tags map[string]string) []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, ec2types.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
