package worker

import (
	"sync/atomic"
	"time"
)

// PoolMetrics tracks worker pool counters
type PoolMetrics struct {
	tasksSubmitted atomic.Uint64
	tasksCompleted atomic.Uint64
	tasksFailed    atomic.Uint64
	tasksRejected  atomic.Uint64

	totalDuration atomic.Uint64 // nanoseconds
	minDuration   atomic.Uint64
	maxDuration   atomic.Uint64

	startTime time.Time
}

// NewPoolMetrics creates a new metrics instance
func NewPoolMetrics() *PoolMetrics {
	return &PoolMetrics{startTime: time.Now()}
}

func (pm *PoolMetrics) IncrementTasksSubmitted() {
	pm.tasksSubmitted.Add(1)
}

func (pm *PoolMetrics) IncrementTasksRejected() {
	pm.tasksRejected.Add(1)
}

// RecordTaskDuration records task execution duration
func (pm *PoolMetrics) RecordTaskDuration(duration time.Duration) {
	nanos := uint64(duration.Nanoseconds())
	pm.totalDuration.Add(nanos)

	for {
		current := pm.minDuration.Load()
		if current != 0 && nanos >= current {
			break
		}
		if pm.minDuration.CompareAndSwap(current, nanos) {
			break
		}
	}

	for {
		current := pm.maxDuration.Load()
		if nanos <= current {
			break
		}
		if pm.maxDuration.CompareAndSwap(current, nanos) {
			break
		}
	}
}

// RecordTaskResult records the outcome of one task
func (pm *PoolMetrics) RecordTaskResult(result Result) {
	if result.Error != nil {
		pm.tasksFailed.Add(1)
	} else {
		pm.tasksCompleted.Add(1)
	}
	pm.RecordTaskDuration(result.Duration)
}

// GetSnapshot returns a snapshot of current metrics
func (pm *PoolMetrics) GetSnapshot() MetricsSnapshot {
	submitted := pm.tasksSubmitted.Load()
	completed := pm.tasksCompleted.Load()
	failed := pm.tasksFailed.Load()

	var avgDuration time.Duration
	if finished := completed + failed; finished > 0 {
		avgDuration = time.Duration(pm.totalDuration.Load() / finished)
	}

	var successRate float64
	if finished := completed + failed; finished > 0 {
		successRate = float64(completed) / float64(finished)
	}

	return MetricsSnapshot{
		TasksSubmitted:  submitted,
		TasksCompleted:  completed,
		TasksFailed:     failed,
		TasksRejected:   pm.tasksRejected.Load(),
		SuccessRate:     successRate,
		AverageDuration: avgDuration,
		MinDuration:     time.Duration(pm.minDuration.Load()),
		MaxDuration:     time.Duration(pm.maxDuration.Load()),
		Uptime:          time.Since(pm.startTime),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	TasksSubmitted  uint64        `json:"tasks_submitted"`
	TasksCompleted  uint64        `json:"tasks_completed"`
	TasksFailed     uint64        `json:"tasks_failed"`
	TasksRejected   uint64        `json:"tasks_rejected"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	Uptime          time.Duration `json:"uptime"`
}

// PoolStats combines metrics with the pool's current load
type PoolStats struct {
	MetricsSnapshot
	Workers       int `json:"workers"`
	ActiveWorkers int `json:"active_workers"`
	QueueSize     int `json:"queue_size"`
	QueueCapacity int `json:"queue_capacity"`
}
