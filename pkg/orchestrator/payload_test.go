package orchestrator

import (
	"testing"

	"github.com/cuemby/fleetsched/pkg/types"
)

func TestFitToThresholdNoopWhenAlreadySmall(t *testing.T) {
	req := &workerRequest{
		Target:    types.ResourceTarget{Account: "111111111111", Region: "us-east-1", Service: types.KindEC2Instance},
		Schedules: []*types.Schedule{{Name: "office-hours", Timezone: "UTC"}},
		Periods:   []*types.Period{{Name: "business-hours"}},
	}
	reload, err := fitToThreshold(req, DefaultPayloadThresholdBytes)
	if err != nil {
		t.Fatalf("fitToThreshold: %v", err)
	}
	if reload {
		t.Error("expected no reload for a small request")
	}
	if len(req.Schedules) != 1 || len(req.Periods) != 1 {
		t.Errorf("request was trimmed when it didn't need to be: %+v", req)
	}
}

func TestFitToThresholdStripsPeriodsBeforeSchedules(t *testing.T) {
	req := &workerRequest{
		Target: types.ResourceTarget{Account: "111111111111", Region: "us-east-1", Service: types.KindEC2Instance},
		Schedules: []*types.Schedule{
			{Name: "office-hours", Timezone: "UTC"},
		},
		Periods: []*types.Period{
			{Name: "business-hours"},
			{Name: "overnight"},
			{Name: "weekend"},
		},
	}
	full, err := req.encodedSize()
	if err != nil {
		t.Fatalf("encodedSize: %v", err)
	}
	threshold := full - 10
	reload, err := fitToThreshold(req, threshold)
	if err != nil {
		t.Fatalf("fitToThreshold: %v", err)
	}
	if reload {
		t.Fatal("expected stripping periods alone to fit under threshold")
	}
	if len(req.Periods) == 3 {
		t.Error("expected at least one period to be stripped")
	}
	if len(req.Schedules) != 1 {
		t.Errorf("expected the schedule to survive while periods alone could shrink enough, got %d", len(req.Schedules))
	}
	if got, _ := req.encodedSize(); got > threshold {
		t.Errorf("final encoded size %d exceeds threshold %d", got, threshold)
	}
}

func TestFitToThresholdReportsReloadWhenEvenEmptyDoesNotFit(t *testing.T) {
	req := &workerRequest{
		Target: types.ResourceTarget{Account: "111111111111111111111111111111", Region: "us-east-1", Service: types.KindEC2Instance},
	}
	reload, err := fitToThreshold(req, 1)
	if err != nil {
		t.Fatalf("fitToThreshold: %v", err)
	}
	if !reload {
		t.Error("expected reload=true when an empty request still exceeds the threshold")
	}
}
