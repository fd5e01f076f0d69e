package syncq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Shards:         2,
		QueueSize:      16,
		EnqueueTimeout: 50 * time.Millisecond,
		MaxAttempts:    3,
		BaseBackoff:    time.Millisecond,
		MaxInterval:    5 * time.Millisecond,
	}
}

func TestSubmit_FIFOPerKey(t *testing.T) {
	e := New(testConfig())
	defer e.Stop()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		err := e.Submit(context.Background(), "same-key", JobFunc(func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := e.Barrier(context.Background(), "same-key"); err != nil {
		t.Fatalf("barrier: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if got != i {
			t.Fatalf("FIFO violated at %d: %v", i, order)
		}
	}
}

func TestSubmit_AfterStop(t *testing.T) {
	e := New(testConfig())
	e.Stop()
	err := e.Submit(context.Background(), "k", JobFunc(func(context.Context) error { return nil }))
	if !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("expected ErrExecutorClosed, got %v", err)
	}
}

func TestSubmit_CancelledContext(t *testing.T) {
	e := New(testConfig())
	defer e.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled submission context is honoured before the job runs.
	var ran atomic.Bool
	_ = e.Submit(ctx, "k", JobFunc(func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	if err := e.Barrier(context.Background(), "k"); err != nil {
		t.Fatalf("barrier: %v", err)
	}
	if ran.Load() {
		t.Fatal("job ran despite cancelled context")
	}
}

func TestRetry_RecoverableUntilMaxAttempts(t *testing.T) {
	var handled atomic.Int32
	cfg := testConfig()
	cfg.ErrorHandler = func(error) { handled.Add(1) }
	e := New(cfg)
	defer e.Stop()

	var attempts atomic.Int32
	boom := errors.New("transient")
	if err := e.Submit(context.Background(), "k", JobFunc(func(context.Context) error {
		attempts.Add(1)
		return boom
	})); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := e.Barrier(context.Background(), "k"); err != nil {
		t.Fatalf("barrier: %v", err)
	}

	if got := attempts.Load(); got != int32(cfg.MaxAttempts) {
		t.Fatalf("attempts = %d, want %d", got, cfg.MaxAttempts)
	}
	if handled.Load() != 1 {
		t.Fatalf("error handler calls = %d, want 1", handled.Load())
	}
}

func TestRetry_PermanentFailsFast(t *testing.T) {
	var handled atomic.Int32
	cfg := testConfig()
	cfg.ErrorHandler = func(error) { handled.Add(1) }
	e := New(cfg)
	defer e.Stop()

	var attempts atomic.Int32
	if err := e.Submit(context.Background(), "k", JobFunc(func(context.Context) error {
		attempts.Add(1)
		return Permanent(errors.New("bad request"))
	})); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := e.Barrier(context.Background(), "k"); err != nil {
		t.Fatalf("barrier: %v", err)
	}

	if attempts.Load() != 1 {
		t.Fatalf("permanent error retried: %d attempts", attempts.Load())
	}
	if handled.Load() != 1 {
		t.Fatalf("error handler calls = %d, want 1", handled.Load())
	}
}

func TestStop_DrainsQueuedJobs(t *testing.T) {
	cfg := testConfig()
	cfg.Shards = 1
	e := New(cfg)

	var ran atomic.Int32
	block := make(chan struct{})
	_ = e.Submit(context.Background(), "k", JobFunc(func(context.Context) error {
		<-block
		return nil
	}))
	for i := 0; i < 5; i++ {
		if err := e.Submit(context.Background(), "k", JobFunc(func(context.Context) error {
			ran.Add(1)
			return nil
		})); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	close(block)
	e.Stop()

	if ran.Load() != 5 {
		t.Fatalf("drained %d jobs, want 5", ran.Load())
	}
}

func TestPermanent_Classification(t *testing.T) {
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}
	base := errors.New("root")
	p := Permanent(base)
	if !IsPermanent(p) {
		t.Fatal("expected IsPermanent")
	}
	if !errors.Is(p, base) {
		t.Fatal("wrapped error lost")
	}
	if IsPermanent(base) {
		t.Fatal("unwrapped error misclassified")
	}
}

func TestQueueFullError_Is(t *testing.T) {
	e := &QueueFullError{Shard: 1, Length: 8, Capacity: 8}
	if !errors.Is(e, ErrQueueFull) {
		t.Fatal("expected errors.Is(e, ErrQueueFull)")
	}
	if errors.Is(e, ErrExecutorClosed) {
		t.Fatal("unexpected match with ErrExecutorClosed")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Shards != 4 || cfg.QueueSize != 128 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
