package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWorkerPool_RunsTasks(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxWorkers: 2, QueueSize: 10})
	if err := pool.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pool.Stop()

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		if err := pool.Submit(Task{ID: "task", Fn: func(ctx context.Context) error {
			defer wg.Done()
			return nil
		}}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wg.Wait()

	waitFor(t, func() bool { return pool.Stats().TasksCompleted == 3 })
	if stats := pool.Stats(); stats.TasksSubmitted != 3 {
		t.Errorf("Expected 3 submitted, got %d", stats.TasksSubmitted)
	}
}

func TestWorkerPool_RejectsWhenQueueFull(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxWorkers: 1, QueueSize: 1})
	if err := pool.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pool.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	_ = pool.Submit(Task{ID: "blocker", Fn: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	if err := pool.Submit(Task{ID: "queued", Fn: func(ctx context.Context) error { return nil }}); err != nil {
		t.Fatalf("Expected second task to queue, got %v", err)
	}
	err := pool.Submit(Task{ID: "rejected", Fn: func(ctx context.Context) error { return nil }})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if pool.Stats().TasksRejected != 1 {
		t.Errorf("Expected 1 rejected task, got %d", pool.Stats().TasksRejected)
	}
	close(release)
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxWorkers: 1, QueueSize: 2})
	if err := pool.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pool.Stop()

	_ = pool.Submit(Task{ID: "panics", Fn: func(ctx context.Context) error { panic("boom") }})

	done := make(chan struct{})
	_ = pool.Submit(Task{ID: "after", Fn: func(ctx context.Context) error {
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected worker to survive a panicking task")
	}
	waitFor(t, func() bool { return pool.Stats().TasksFailed == 1 })
}

func TestWorkerPool_StopCancelsRunningTasks(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxWorkers: 1, QueueSize: 1, ShutdownTimeout: time.Second})
	if err := pool.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	started := make(chan struct{})
	cancelled := make(chan error, 1)
	_ = pool.Submit(Task{ID: "long", Fn: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled <- ctx.Err()
		return ctx.Err()
	}})
	<-started

	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-cancelled; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected task context to be cancelled, got %v", err)
	}
	if err := pool.Submit(Task{ID: "late", Fn: func(ctx context.Context) error { return nil }}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped, got %v", err)
	}
}

func TestWorkerPool_TaskTimeout(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{MaxWorkers: 1, QueueSize: 1})
	if err := pool.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer pool.Stop()

	result := make(chan error, 1)
	_ = pool.Submit(Task{
		ID:      "bounded",
		Timeout: 10 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			<-ctx.Done()
			result <- ctx.Err()
			return ctx.Err()
		},
	})

	select {
	case err := <-result:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected deadline exceeded, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected task to time out")
	}
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		panic("bad input")
	}

	var pe *PanicError
	if err := run(); !errors.As(err, &pe) || pe.Value != "bad input" {
		t.Errorf("Expected PanicError, got %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}
