package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/UmarSaeed090/sensors-backend/internal/alerts"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
)

func f(v float64) *float64 { return &v }

type fakeStore struct {
	mu      sync.Mutex
	inserts []*models.Reading
	err     error
}

func (s *fakeStore) Insert(ctx context.Context, r *models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.inserts = append(s.inserts, r)
	return nil
}

func (s *fakeStore) List(ctx context.Context, tag string, limit int) ([]*models.Reading, error) {
	return nil, nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return nil }
func (s *fakeStore) Close()                         {}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserts)
}

type dispatchCall struct {
	tagNumber  string
	conditions []string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (n *fakeNotifier) Dispatch(tagNumber string, conditions []string, reading *models.Reading) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, dispatchCall{tagNumber: tagNumber, conditions: conditions})
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *fakeNotifier) call(i int) dispatchCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[i]
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newTestPipeline(store *fakeStore, notifier *fakeNotifier) *Pipeline {
	return New(Config{
		Evaluator: alerts.NewEvaluator(nil),
		Cooldown:  alerts.NewMemoryCooldown(10 * time.Minute),
		Store:     store,
		Notifier:  notifier,
		QueueSize: 16,
		Workers:   2,
	})
}

func breachReading() *models.Reading {
	return &models.Reading{
		TagNumber: "COW1",
		MAX30100:  &models.MAX30100{HeartRate: f(150)},
		Timestamp: time.Now(),
	}
}

func TestPipelineAlertFlow(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	p := newTestPipeline(store, notifier)
	p.Start()
	defer p.Stop()

	if !p.Enqueue(breachReading()) {
		t.Fatal("enqueue rejected")
	}

	waitFor(t, func() bool { return notifier.count() == 1 }, "notification never dispatched")

	call := notifier.call(0)
	if call.tagNumber != "COW1" {
		t.Errorf("unexpected tag: %s", call.tagNumber)
	}
	if len(call.conditions) != 1 || call.conditions[0] != alerts.ConditionAbnormalHeartRate {
		t.Errorf("unexpected conditions: %v", call.conditions)
	}
	if store.count() != 1 {
		t.Errorf("expected 1 persisted reading, got %d", store.count())
	}
}

func TestPipelineCooldownSuppressesRepeat(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	p := newTestPipeline(store, notifier)
	p.Start()
	defer p.Stop()

	p.Enqueue(breachReading())
	p.Enqueue(breachReading())

	// Both breaches persist, only the first dispatches
	waitFor(t, func() bool { return store.count() == 2 }, "readings never persisted")
	waitFor(t, func() bool { return notifier.count() == 1 }, "notification never dispatched")

	time.Sleep(50 * time.Millisecond)
	if notifier.count() != 1 {
		t.Fatalf("expected exactly 1 dispatch, got %d", notifier.count())
	}
}

func TestPipelineNoBreachNotPersisted(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	p := newTestPipeline(store, notifier)
	p.Start()
	defer p.Stop()

	p.Enqueue(&models.Reading{
		TagNumber: "COW1",
		MAX30100:  &models.MAX30100{HeartRate: f(80)},
		Timestamp: time.Now(),
	})

	waitFor(t, func() bool { return p.Stats().Processed == 1 }, "reading never processed")

	if store.count() != 0 {
		t.Errorf("healthy reading should not be persisted, got %d inserts", store.count())
	}
	if notifier.count() != 0 {
		t.Errorf("healthy reading should not dispatch, got %d calls", notifier.count())
	}
}

func TestPipelineStoreFailureDoesNotBlockDispatch(t *testing.T) {
	store := &fakeStore{err: errors.New("database down")}
	notifier := &fakeNotifier{}
	p := newTestPipeline(store, notifier)
	p.Start()
	defer p.Stop()

	p.Enqueue(breachReading())

	waitFor(t, func() bool { return notifier.count() == 1 }, "dispatch should survive storage failure")
}

func TestPipelineNilStoreSkipsPersistence(t *testing.T) {
	notifier := &fakeNotifier{}
	p := New(Config{
		Evaluator: alerts.NewEvaluator(nil),
		Cooldown:  alerts.NewMemoryCooldown(10 * time.Minute),
		Notifier:  notifier,
		QueueSize: 16,
		Workers:   1,
	})
	p.Start()
	defer p.Stop()

	p.Enqueue(breachReading())

	waitFor(t, func() bool { return notifier.count() == 1 }, "dispatch should work without a store")
}

func TestPipelineEnqueueFullQueue(t *testing.T) {
	p := New(Config{
		Evaluator: alerts.NewEvaluator(nil),
		Cooldown:  alerts.NewMemoryCooldown(10 * time.Minute),
		Notifier:  &fakeNotifier{},
		QueueSize: 1,
		Workers:   1,
	})
	// Not started: the single slot fills and the next enqueue is rejected

	if !p.Enqueue(breachReading()) {
		t.Fatal("first enqueue should succeed")
	}
	if p.Enqueue(breachReading()) {
		t.Fatal("enqueue into a full queue should be rejected")
	}
}
