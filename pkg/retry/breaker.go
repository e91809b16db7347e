package retry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerKey identifies the partition a circuit breaker guards: one
// breaker per (account, region, service), the unit no two workers ever
// share concurrently.
type BreakerKey struct {
	Account string
	Region  string
	Service string
}

func (k BreakerKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Account, k.Region, k.Service)
}

// BreakerRegistry lazily creates and caches one gobreaker.CircuitBreaker
// per BreakerKey, so a partition that starts throwing errors trips open
// and stops burning retry budget on calls likely to fail anyway.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[BreakerKey]*gobreaker.CircuitBreaker
	settings func(name string) gobreaker.Settings
}

// NewBreakerRegistry builds a registry. settingsFn may be nil to use
// DefaultSettings for every key.
func NewBreakerRegistry(settingsFn func(name string) gobreaker.Settings) *BreakerRegistry {
	if settingsFn == nil {
		settingsFn = DefaultSettings
	}
	return &BreakerRegistry{
		breakers: make(map[BreakerKey]*gobreaker.CircuitBreaker),
		settings: settingsFn,
	}
}

// DefaultSettings trips after 5 consecutive failures, and probes again
// after 30s half-open.
func DefaultSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func (r *BreakerRegistry) breaker(key BreakerKey) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(r.settings(key.String()))
	r.breakers[key] = b
	return b
}

// Execute runs fn through the breaker for key. A tripped breaker returns
// gobreaker.ErrOpenState without calling fn.
func (r *BreakerRegistry) Execute(_ context.Context, key BreakerKey, fn func() error) error {
	_, err := r.breaker(key).Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}
