package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressReporter logs how far a long-running operation has advanced.
// Log lines are throttled to one per interval, plus one on completion.
type ProgressReporter struct {
	mu          sync.Mutex
	total       int
	current     int
	description string
	interval    time.Duration
	startTime   time.Time
	lastUpdate  time.Time
	logger      *Logger
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(total int, description string, log *Logger) *ProgressReporter {
	if log == nil {
		log = GetLogger()
	}
	now := time.Now()
	return &ProgressReporter{
		total:       total,
		description: description,
		interval:    5 * time.Second,
		startTime:   now,
		lastUpdate:  now,
		logger:      log.WithField("component", "progress"),
	}
}

// SetCurrent sets the current progress value
func (pr *ProgressReporter) SetCurrent(current int) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.current = current
	now := time.Now()

	if now.Sub(pr.lastUpdate) >= pr.interval || pr.current >= pr.total {
		pr.reportProgress()
		pr.lastUpdate = now
	}
}

// GetProgress returns current progress information
func (pr *ProgressReporter) GetProgress() (current, total int, percentage float64) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	return pr.current, pr.total, pr.percentage()
}

func (pr *ProgressReporter) percentage() float64 {
	if pr.total == 0 {
		return 100
	}
	return float64(pr.current) / float64(pr.total) * 100
}

// reportProgress logs the current progress (must be called with lock held)
func (pr *ProgressReporter) reportProgress() {
	percentage := pr.percentage()
	elapsed := time.Since(pr.startTime)

	var eta string
	if pr.current > 0 && pr.current < pr.total {
		avgTimePerItem := elapsed / time.Duration(pr.current)
		remaining := time.Duration(pr.total-pr.current) * avgTimePerItem
		eta = fmt.Sprintf(" (ETA: %s)", remaining.Round(time.Second))
	}

	pr.logger.WithFields(map[string]interface{}{
		"current": pr.current,
		"total":   pr.total,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	}).Info(fmt.Sprintf("%s: %d/%d (%.1f%%)%s", pr.description, pr.current, pr.total, percentage, eta))
}
