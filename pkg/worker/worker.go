package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"serp-go/pkg/logger"
)

// worker represents a single worker goroutine
type worker struct {
	id             int
	taskQueue      <-chan Task
	timeout        time.Duration
	log            *logger.Logger
	active         atomic.Bool
	tasksProcessed atomic.Uint64
}

func newWorker(id int, taskQueue <-chan Task, timeout time.Duration, log *logger.Logger) *worker {
	return &worker{
		id:        id,
		taskQueue: taskQueue,
		timeout:   timeout,
		log:       log.WithField("worker_id", id),
	}
}

// start runs queued tasks until the queue is closed. Tasks still queued at
// shutdown run with the cancelled pool context so they can record failure.
func (w *worker) start(ctx context.Context, metrics *PoolMetrics) {
	w.log.Debug("Worker started")
	defer w.log.Debug("Worker stopped")

	for task := range w.taskQueue {
		w.processTask(ctx, task, metrics)
	}
}

// processTask executes a single task with timeout and panic recovery
func (w *worker) processTask(ctx context.Context, task Task, metrics *PoolMetrics) {
	w.active.Store(true)
	defer w.active.Store(false)

	start := time.Now()
	w.log.WithField("task_id", task.ID).Debug("Processing task")

	taskTimeout := task.Timeout
	if taskTimeout == 0 {
		taskTimeout = w.timeout
	}

	taskCtx, cancel := ctx, context.CancelFunc(func() {})
	if taskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, taskTimeout)
	}
	defer cancel()

	err := runTask(taskCtx, task)
	if pe, ok := err.(*PanicError); ok {
		w.log.WithFields(map[string]interface{}{
			"task_id": task.ID,
			"panic":   fmt.Sprint(pe.Value),
			"stack":   pe.Stack,
		}).Error("Task panicked")
	}

	duration := time.Since(start)
	w.tasksProcessed.Add(1)
	metrics.RecordTaskResult(Result{TaskID: task.ID, Error: err, Duration: duration})

	logFields := map[string]interface{}{
		"task_id":  task.ID,
		"duration": duration.String(),
	}
	if err != nil {
		logFields["error"] = err.Error()
		w.log.WithFields(logFields).Warn("Task completed with error")
	} else {
		w.log.WithFields(logFields).Debug("Task completed successfully")
	}
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return task.Fn(ctx)
}

func (w *worker) isActive() bool {
	return w.active.Load()
}

// PanicError wraps a recovered panic value as an error
type PanicError struct {
	Value interface{}
	Stack string
}

func (pe *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", pe.Value)
}

// Recover converts a panic in the calling goroutine into a *PanicError
// stored in errp. Use as: defer worker.Recover(&err)
func Recover(errp *error) {
	if r := recover(); r != nil {
		*errp = &PanicError{Value: r, Stack: string(debug.Stack())}
	}
}
