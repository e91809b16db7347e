package targetsched

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cuemby/fleetsched/pkg/retry"
	"github.com/cuemby/fleetsched/pkg/storage"
	"github.com/cuemby/fleetsched/pkg/types"
)

// fakeCompute is a cloud.ComputeService double whose Stop hook is
// programmable per call, so tests can script a batch failing once and
// succeeding on retry.
type fakeCompute struct {
	stopHibernate func(ids []string) error
	stopPlain     func(ids []string) error
}

func (f *fakeCompute) DescribeTagged(ctx context.Context, tagKey string, visit func(types.ResourceRuntimeInfo) error) error {
	return nil
}
func (f *fakeCompute) Start(ctx context.Context, ids []string) error { return nil }
func (f *fakeCompute) Stop(ctx context.Context, ids []string, hibernate bool) error {
	if hibernate {
		if f.stopHibernate != nil {
			return f.stopHibernate(ids)
		}
		return nil
	}
	if f.stopPlain != nil {
		return f.stopPlain(ids)
	}
	return nil
}
func (f *fakeCompute) ModifyType(ctx context.Context, id, newInstanceType string) error { return nil }
func (f *fakeCompute) CreateTags(ctx context.Context, ids []string, tags map[string]string) error {
	return nil
}
func (f *fakeCompute) DeleteTags(ctx context.Context, ids []string, tagKeys []string) error {
	return nil
}

type unsupportedHibernationError struct{}

func (unsupportedHibernationError) Error() string { return "UnsupportedHibernationConfiguration" }

func newTestEC2Worker(t *testing.T, compute *fakeCompute, hibernateUnsupported retry.Retryable) *EC2Worker {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &EC2Worker{
		cfg: Config{
			Backoff:              retry.BackoffConfig{MaxAttempts: 1},
			IsTransient:          func(error) bool { return false },
			HibernateUnsupported: hibernateUnsupported,
		},
		compute:  compute,
		store:    store,
		breakers: retry.NewBreakerRegistry(nil),
		account:  "111111111111",
		region:   "us-east-1",
		logger:   zerolog.Nop(),
	}
}

// TestDispatchHibernateFallsBackToStop exercises the scenario where a
// hibernate batch fails with "instance not configured for hibernation":
// the id must be re-driven through a plain stop and recorded as
// action_taken=stop rather than surfacing a resource error.
func TestDispatchHibernateFallsBackToStop(t *testing.T) {
	var stoppedPlain []string
	compute := &fakeCompute{
		stopHibernate: func(ids []string) error { return unsupportedHibernationError{} },
		stopPlain: func(ids []string) error {
			stoppedPlain = append(stoppedPlain, ids...)
			return nil
		},
	}
	w := newTestEC2Worker(t, compute, func(err error) bool {
		return errors.Is(err, unsupportedHibernationError{})
	})

	candidates := []candidate{
		{
			resource: types.ResourceRuntimeInfo{ID: "i-hibernate"},
			decision: Decision{Action: types.ActionHibernate, NewStoredState: types.StoredStopped},
		},
	}

	errs := w.dispatch(context.Background(), candidates)
	if len(errs) != 0 {
		t.Fatalf("dispatch() errs = %v, want none", errs)
	}
	if len(stoppedPlain) != 1 || stoppedPlain[0] != "i-hibernate" {
		t.Fatalf("stoppedPlain = %v, want [i-hibernate]", stoppedPlain)
	}

	rec, err := w.store.GetRegistryRecord(w.account, w.region, string(types.KindEC2Instance), "i-hibernate")
	if err != nil {
		t.Fatalf("GetRegistryRecord: %v", err)
	}
	if rec.StoredState != types.StoredStopped {
		t.Errorf("StoredState = %q, want %q", rec.StoredState, types.StoredStopped)
	}
}

// TestDispatchHibernateOtherFailureReportsError confirms a hibernate
// failure unrelated to missing hibernation support still surfaces as a
// resource error instead of being silently retried as a stop.
func TestDispatchHibernateOtherFailureReportsError(t *testing.T) {
	compute := &fakeCompute{
		stopHibernate: func(ids []string) error { return errors.New("insufficient capacity") },
	}
	w := newTestEC2Worker(t, compute, func(err error) bool { return false })

	candidates := []candidate{
		{
			resource: types.ResourceRuntimeInfo{ID: "i-capacity"},
			decision: Decision{Action: types.ActionHibernate, NewStoredState: types.StoredStopped},
		},
	}

	errs := w.dispatch(context.Background(), candidates)
	if len(errs) != 1 {
		t.Fatalf("dispatch() errs = %v, want exactly 1", errs)
	}
	var resErr *types.ResourceError
	if !errors.As(errs[0], &resErr) || resErr.ResourceID != "i-capacity" {
		t.Errorf("errs[0] = %v, want a ResourceError for i-capacity", errs[0])
	}

	rec, err := w.store.GetRegistryRecord(w.account, w.region, string(types.KindEC2Instance), "i-capacity")
	if err != nil {
		t.Fatalf("GetRegistryRecord: %v", err)
	}
	if rec.StoredState != types.StoredError {
		t.Errorf("StoredState = %q, want %q", rec.StoredState, types.StoredError)
	}
}
