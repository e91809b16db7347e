package awsclients

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/robfig/cron/v3"

	"github.com/cuemby/fleetsched/pkg/maintenance"
)

// windowService implements maintenance.WindowService against SSM-style
// named maintenance windows: each window carries a cron schedule and a
// duration, and is "active" for the duration immediately following the
// most recent trigger at or before the probe time.
type windowService struct {
	client *ssm.Client
	parser cron.Parser
}

var _ maintenance.WindowService = (*windowService)(nil)

// NewWindowService builds a maintenance.WindowService backed by SSM.
func NewWindowService(client *ssm.Client) maintenance.WindowService {
	return &windowService{
		client: client,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (s *windowService) IsActive(ctx context.Context, windowName string, at time.Time) (bool, error) {
	resp, err := s.client.DescribeMaintenanceWindows(ctx, &ssm.DescribeMaintenanceWindowsInput{
		Filters: []ssmtypes.MaintenanceWindowFilter{{
			Key:    aws.String("Name"),
			Values: []string{windowName},
		}},
	})
	if err != nil {
		return false, fmt.Errorf("awsclients: describe maintenance window %s: %w", windowName, err)
	}
	for _, w := range resp.WindowIdentities {
		if !aws.ToBool(w.Enabled) {
			continue
		}
		active, err := s.windowActiveAt(w, at)
		if err != nil {
			return false, err
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}

func (s *windowService) windowActiveAt(w ssmtypes.MaintenanceWindowIdentity, at time.Time) (bool, error) {
	schedule := aws.ToString(w.Schedule)
	if schedule == "" {
		return false, nil
	}
	sched, err := s.parser.Parse(schedule)
	if err != nil {
		return false, fmt.Errorf("awsclients: parse maintenance window schedule %q: %w", schedule, err)
	}

	duration := time.Duration(aws.ToInt32(w.Duration)) * time.Hour
	cutoff := time.Duration(aws.ToInt32(w.Cutoff)) * time.Hour

	// robfig/cron only walks forward, so find the most recent trigger at or
	// before "at" by stepping forward from a lookback point until the next
	// trigger would be after "at".
	probe := at.Add(-duration - cutoff - 7*24*time.Hour)
	var last time.Time
	found := false
	for {
		next := sched.Next(probe)
		if next.After(at) {
			break
		}
		last = next
		found = true
		probe = next
	}
	if !found {
		return false, nil
	}
	return at.Before(last.Add(duration)), nil
}
