package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

// TestBreakerRegistryTripsAfterConsecutiveFailures tests that a partition
// stops executing calls once its breaker trips open.
func TestBreakerRegistryTripsAfterConsecutiveFailures(t *testing.T) {
	reg := NewBreakerRegistry(func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 2
			},
		}
	})
	key := BreakerKey{Account: "1", Region: "us-east-1", Service: "ec2"}
	failing := errors.New("boom")

	for i := 0; i < 2; i++ {
		if err := reg.Execute(context.Background(), key, func() error { return failing }); !errors.Is(err, failing) {
			t.Fatalf("Execute() call %d error = %v, want failing", i, err)
		}
	}

	calls := 0
	err := reg.Execute(context.Background(), key, func() error { calls++; return nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Execute() error = %v, want ErrOpenState", err)
	}
	if calls != 0 {
		t.Errorf("underlying fn called after breaker tripped, calls = %d", calls)
	}
}

// TestBreakerRegistryIsolatesKeys tests that a tripped breaker for one
// (account, region, service) doesn't affect another partition.
func TestBreakerRegistryIsolatesKeys(t *testing.T) {
	reg := NewBreakerRegistry(func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 1
			},
		}
	})
	bad := BreakerKey{Account: "1", Region: "us-east-1", Service: "ec2"}
	good := BreakerKey{Account: "1", Region: "us-west-2", Service: "ec2"}

	_ = reg.Execute(context.Background(), bad, func() error { return errors.New("boom") })

	calls := 0
	if err := reg.Execute(context.Background(), good, func() error { calls++; return nil }); err != nil {
		t.Fatalf("Execute() on healthy partition error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (other partition unaffected)", calls)
	}
}
