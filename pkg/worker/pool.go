package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"serp-go/pkg/logger"
)

var (
	// ErrQueueFull is returned when a task can not be queued without blocking
	ErrQueueFull = errors.New("task queue is full")
	// ErrPoolStopped is returned for submissions after Stop
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Task represents a unit of work to be executed
type Task struct {
	ID string
	Fn func(ctx context.Context) error
	// Timeout bounds the task; zero means no deadline beyond pool shutdown
	Timeout time.Duration
}

// Result represents the result of task execution
type Result struct {
	TaskID   string
	Error    error
	Duration time.Duration
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	MaxWorkers      int           `mapstructure:"max_workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultPoolConfig returns the default pool sizing for background analyses
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxWorkers:      runtime.NumCPU(),
		QueueSize:       100,
		ShutdownTimeout: 10 * time.Second,
	}
}

// WorkerPool runs submitted tasks on a fixed set of goroutines with a
// bounded queue
type WorkerPool struct {
	config    PoolConfig
	taskQueue chan Task
	workers   []*worker
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	log       *logger.Logger
	metrics   *PoolMetrics

	// mu guards taskQueue against close during Submit
	mu      sync.RWMutex
	started atomic.Bool
	stopped atomic.Bool
}

// NewWorkerPool creates a new worker pool with the given configuration
func NewWorkerPool(config PoolConfig) *WorkerPool {
	defaults := DefaultPoolConfig()
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = defaults.MaxWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		config:    config,
		taskQueue: make(chan Task, config.QueueSize),
		workers:   make([]*worker, 0, config.MaxWorkers),
		ctx:       ctx,
		cancel:    cancel,
		log:       logger.GetLogger().WithField("component", "worker_pool"),
		metrics:   NewPoolMetrics(),
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() error {
	if !wp.started.CompareAndSwap(false, true) {
		return fmt.Errorf("worker pool already started")
	}

	wp.log.WithField("max_workers", wp.config.MaxWorkers).Info("Starting worker pool")

	for i := 0; i < wp.config.MaxWorkers; i++ {
		w := newWorker(i, wp.taskQueue, wp.config.TaskTimeout, wp.log)
		wp.workers = append(wp.workers, w)

		wp.wg.Add(1)
		go func(w *worker) {
			defer wp.wg.Done()
			w.start(wp.ctx, wp.metrics)
		}(w)
	}

	return nil
}

// Submit queues a task without blocking. A full queue returns ErrQueueFull.
func (wp *WorkerPool) Submit(task Task) error {
	if task.Fn == nil {
		return fmt.Errorf("task %s has no function", task.ID)
	}

	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped.Load() {
		return ErrPoolStopped
	}
	if !wp.started.Load() {
		return fmt.Errorf("worker pool not started")
	}

	select {
	case wp.taskQueue <- task:
		wp.metrics.IncrementTasksSubmitted()
		return nil
	default:
		wp.metrics.IncrementTasksRejected()
		return ErrQueueFull
	}
}

// Stop cancels running tasks, lets workers drain the queue with the
// cancelled context, and waits up to ShutdownTimeout
func (wp *WorkerPool) Stop() error {
	if !wp.stopped.CompareAndSwap(false, true) {
		return nil
	}

	wp.log.Info("Stopping worker pool")
	wp.cancel()

	wp.mu.Lock()
	close(wp.taskQueue)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info("Worker pool stopped gracefully")
		return nil
	case <-time.After(wp.config.ShutdownTimeout):
		wp.log.Warn("Worker pool shutdown timeout exceeded")
		return fmt.Errorf("worker pool shutdown timed out after %s", wp.config.ShutdownTimeout)
	}
}

// Stats returns a snapshot of pool metrics and current load
func (wp *WorkerPool) Stats() PoolStats {
	return PoolStats{
		MetricsSnapshot: wp.metrics.GetSnapshot(),
		Workers:         wp.config.MaxWorkers,
		ActiveWorkers:   wp.GetActiveWorkers(),
		QueueSize:       wp.GetQueueSize(),
		QueueCapacity:   wp.config.QueueSize,
	}
}

// GetQueueSize returns current queue size
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.taskQueue)
}

// GetActiveWorkers returns number of workers currently running a task
func (wp *WorkerPool) GetActiveWorkers() int {
	activeCount := 0
	for _, w := range wp.workers {
		if w.isActive() {
			activeCount++
		}
	}
	return activeCount
}
