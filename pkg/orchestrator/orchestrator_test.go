package orchestrator

import (
	"testing"

	"github.com/cuemby/fleetsched/pkg/log"
	"github.com/cuemby/fleetsched/pkg/types"
)

func newTestOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg.withDefaults(),
		logger: log.WithComponent("orchestrator-test"),
	}
}

func TestEnumerateTargetsIsCrossProduct(t *testing.T) {
	o := newTestOrchestrator(Config{
		Services: []types.ResourceKind{types.KindEC2Instance, types.KindRDSInstance},
		Accounts: []string{"111111111111", "222222222222"},
		Regions:  []string{"us-east-1", "eu-west-1"},
	})
	targets := o.enumerateTargets()
	if len(targets) != 2*2*2 {
		t.Fatalf("got %d targets, want 8", len(targets))
	}
	seen := make(map[types.ResourceTarget]bool)
	for _, tgt := range targets {
		seen[tgt] = true
	}
	if !seen[(types.ResourceTarget{Account: "111111111111", Region: "us-east-1", Service: types.KindEC2Instance})] {
		t.Error("expected cross product to include every (account, region, service) combination")
	}
	if !seen[(types.ResourceTarget{Account: "222222222222", Region: "eu-west-1", Service: types.KindRDSInstance})] {
		t.Error("expected cross product to include every (account, region, service) combination")
	}
}

func TestEnumerateTargetsEmptyWhenNoServices(t *testing.T) {
	o := newTestOrchestrator(Config{Accounts: []string{"111111111111"}, Regions: []string{"us-east-1"}})
	if targets := o.enumerateTargets(); len(targets) != 0 {
		t.Errorf("expected no targets with no configured services, got %d", len(targets))
	}
}

func TestRecordTargetCountsDoesNotPanicOnEmptyFleet(t *testing.T) {
	o := newTestOrchestrator(Config{})
	o.recordTargetCounts(nil)
}
