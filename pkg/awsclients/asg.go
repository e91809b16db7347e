package awsclients

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"

	"github.com/cuemby/fleetsched/pkg/cloud"
	"github.com/cuemby/fleetsched/pkg/types"
)

// asgService implements cloud.ASGService against auto-scaling groups. ASGs
// are configured via scheduled actions, not started/stopped directly.
type asgService struct {
	client *autoscaling.Client
}

func (s *asgService) DescribeTagged(ctx context.Context, tagKey string, visit func(types.ResourceRuntimeInfo) error) error {
	paginator := autoscaling.NewDescribeAutoScalingGroupsPaginator(s.client, &autoscaling.DescribeAutoScalingGroupsInput{
		Filters: []asgtypes.Filter{{Name: aws.String("tag-key"), Values: []string{tagKey}}},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("awsclients: describe auto scaling groups: %w", err)
		}
		for _, group := range page.AutoScalingGroups {
			if err := visit(asgRuntimeInfo(group, tagKey)); err != nil {
				return err
			}
		}
	}
	return nil
}

func asgRuntimeInfo(group asgtypes.AutoScalingGroup, scheduleTagKey string) types.ResourceRuntimeInfo {
	tags := make(map[string]string, len(group.Tags))
	var scheduleName string
	for _, t := range group.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		if aws.ToString(t.Key) == scheduleTagKey {
			scheduleName = aws.ToString(t.Value)
		}
	}
	return types.ResourceRuntimeInfo{
		ID:           aws.ToString(group.AutoScalingGroupName),
		Name:         aws.ToString(group.AutoScalingGroupName),
		Kind:         types.KindAutoScaling,
		Tags:         tags,
		ScheduleName: scheduleName,
		MinSize:      aws.ToInt32(group.MinSize),
		DesiredSize:  aws.ToInt32(group.DesiredCapacity),
		MaxSize:      aws.ToInt32(group.MaxSize),
	}
}

func (s *asgService) DescribeScheduledActions(ctx context.Context, groupName, namePrefix string) ([]cloud.ScheduledAction, error) {
	resp, err := s.client.DescribeScheduledActions(ctx, &autoscaling.DescribeScheduledActionsInput{
		AutoScalingGroupName: aws.String(groupName),
	})
	if err != nil {
		return nil, fmt.Errorf("awsclients: describe scheduled actions for %s: %w", groupName, err)
	}
	out := make([]cloud.ScheduledAction, 0, len(resp.ScheduledUpdateGroupActions))
	for _, a := range resp.ScheduledUpdateGroupActions {
		name := aws.ToString(a.ScheduledActionName)
		if namePrefix != "" && !strings.HasPrefix(name, namePrefix) {
			continue
		}
		out = append(out, cloud.ScheduledAction{
			Name:            name,
			Recurrence:      aws.ToString(a.Recurrence),
			MinSize:         a.MinSize,
			DesiredCapacity: a.DesiredCapacity,
			MaxSize:         a.MaxSize,
		})
	}
	return out, nil
}

func (s *asgService) BatchPutScheduledActions(ctx context.Context, groupName string, actions []cloud.ScheduledAction) error {
	if len(actions) == 0 {
		return nil
	}
	requests := make([]asgtypes.ScheduledUpdateGroupActionRequest, len(actions))
	for i, a := range actions {
		requests[i] = asgtypes.ScheduledUpdateGroupActionRequest{
			ScheduledActionName: aws.String(a.Name),
			Recurrence:          aws.String(a.Recurrence),
			MinSize:             a.MinSize,
			DesiredCapacity:     a.DesiredCapacity,
			MaxSize:             a.MaxSize,
		}
	}
	_, err := s.client.BatchPutScheduledUpdateGroupAction(ctx, &autoscaling.BatchPutScheduledUpdateGroupActionInput{
		AutoScalingGroupName:         aws.String(groupName),
		ScheduledUpdateGroupActions: requests,
	})
	return err
}

func (s *asgService) BatchDeleteScheduledActions(ctx context.Context, groupName string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := s.client.BatchDeleteScheduledAction(ctx, &autoscaling.BatchDeleteScheduledActionInput{
		AutoScalingGroupName: aws.String(groupName),
		ScheduledActionNames: names,
	})
	return err
}

func (s *asgService) CreateOrUpdateTags(ctx context.Context, groupName string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	list := make([]asgtypes.Tag, 0, len(tags))
	for k, v := range tags {
		list = append(list, asgtypes.Tag{
			ResourceId:        aws.String(groupName),
			ResourceType:      aws.String("auto-scaling-group"),
			Key:                aws.String(k),
			Value:              aws.String(v),
			PropagateAtLaunch: aws.Bool(false),
		})
	}
	_, err := s.client.CreateOrUpdateTags(ctx, &autoscaling.CreateOrUpdateTagsInput{Tags: list})
	return err
}
