package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"serp-go/pkg/logger"
	"serp-go/pkg/model"
	"serp-go/pkg/retry"
	"serp-go/pkg/serp"
)

// Resolver maps one keyword to its ranked positions
type Resolver interface {
	Resolve(ctx context.Context, keyword, targetDomain string) (*model.KeywordAnalysis, error)
}

// ProgressFunc receives (processed, total) after every batch
type ProgressFunc func(processed, total int)

// SchedulerConfig controls batching, pacing and per-keyword retry
type SchedulerConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	BatchDelay  time.Duration `mapstructure:"batch_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// DefaultSchedulerConfig returns 5-keyword batches 500ms apart with 3
// attempts per keyword backing off from 1s up to 5s
func DefaultSchedulerConfig() SchedulerConfig {
	policy := retry.DefaultPolicy()
	return SchedulerConfig{
		BatchSize:   5,
		BatchDelay:  500 * time.Millisecond,
		MaxAttempts: policy.MaxAttempts,
		BaseDelay:   policy.BaseDelay,
		MaxDelay:    policy.MaxDelay,
	}
}

// RetryPolicy returns the per-keyword policy. Fatal oracle errors are never
// retried.
func (c SchedulerConfig) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
		MaxDelay:    c.MaxDelay,
		IsRetryable: serp.IsRetryable,
	}
}

// BatchResult is the outcome of resolving a keyword set
type BatchResult struct {
	Resolved []*model.KeywordAnalysis
	// Competitors are the distinct non-target domains observed, first seen first
	Competitors []string
	Unresolved  []model.UnresolvedKeyword
}

// BatchScheduler resolves keywords in fixed-size concurrent batches. Batches
// run strictly one after another with a fixed pause between them.
type BatchScheduler struct {
	resolver Resolver
	config   SchedulerConfig
	log      *logger.Logger
}

// NewBatchScheduler creates a scheduler around resolver
func NewBatchScheduler(resolver Resolver, config SchedulerConfig) *BatchScheduler {
	defaults := DefaultSchedulerConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.BatchDelay < 0 {
		config.BatchDelay = 0
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}

	return &BatchScheduler{
		resolver: resolver,
		config:   config,
		log:      logger.GetLogger().WithField("component", "batch_scheduler"),
	}
}

// Run resolves every keyword. Keywords that exhaust their retries are
// returned as unresolved; a fatal configuration error or context
// cancellation aborts the run and is returned with whatever was resolved so far.
func (s *BatchScheduler) Run(ctx context.Context, keywords []string, targetDomain string, progress ProgressFunc) (*BatchResult, error) {
	total := len(keywords)
	result := &BatchResult{
		Resolved: make([]*model.KeywordAnalysis, 0, total),
	}
	target := serp.NormalizeDomain(targetDomain)
	seen := make(map[string]bool)
	policy := s.config.RetryPolicy()
	reporter := logger.NewProgressReporter(total, "Resolving keywords", s.log)

	s.log.WithFields(map[string]interface{}{
		"keywords":   total,
		"batch_size": s.config.BatchSize,
		"target":     target,
	}).Info("Starting keyword resolution")

	processed := 0
	for start := 0; start < total; start += s.config.BatchSize {
		if start > 0 && s.config.BatchDelay > 0 {
			if err := sleep(ctx, s.config.BatchDelay); err != nil {
				return result, err
			}
		}

		end := min(start+s.config.BatchSize, total)
		batch := keywords[start:end]

		analyses, failures, err := s.runBatch(ctx, batch, targetDomain, policy)
		if err != nil {
			s.log.WithError(err).WithField("batch_start", start).Error("Keyword resolution aborted")
			return result, err
		}

		for i, keyword := range batch {
			if analyses[i] != nil {
				result.Resolved = append(result.Resolved, analyses[i])
				for _, pos := range analyses[i].CompetitorPositions {
					if pos.Domain != target && !seen[pos.Domain] {
						seen[pos.Domain] = true
						result.Competitors = append(result.Competitors, pos.Domain)
					}
				}
				continue
			}

			unresolved := model.UnresolvedKeyword{
				Keyword:   keyword,
				Attempts:  attemptsOf(failures[i]),
				LastError: failures[i].Error(),
				FailedAt:  time.Now().UTC(),
			}
			result.Unresolved = append(result.Unresolved, unresolved)
			s.log.WithFields(map[string]interface{}{
				"keyword":  keyword,
				"attempts": unresolved.Attempts,
				"error":    unresolved.LastError,
			}).Warn("Keyword dropped after retries")
		}

		processed += len(batch)
		reporter.SetCurrent(processed)
		if progress != nil {
			progress(processed, total)
		}
	}

	s.log.WithFields(map[string]interface{}{
		"resolved":    len(result.Resolved),
		"unresolved":  len(result.Unresolved),
		"competitors": len(result.Competitors),
	}).Info("Keyword resolution completed")

	return result, nil
}

// runBatch resolves one batch concurrently. Per-keyword failures are
// returned by index; only fatal errors and cancellation fail the batch.
func (s *BatchScheduler) runBatch(ctx context.Context, batch []string, targetDomain string, policy retry.Policy) ([]*model.KeywordAnalysis, []error, error) {
	analyses := make([]*model.KeywordAnalysis, len(batch))
	failures := make([]error, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, keyword := range batch {
		g.Go(func() (err error) {
			defer Recover(&err)

			analysis, err := retry.Do(gctx, policy, func(ctx context.Context) (*model.KeywordAnalysis, error) {
				return s.resolver.Resolve(ctx, keyword, targetDomain)
			})
			if err == nil {
				if analysis == nil {
					failures[i] = fmt.Errorf("resolver returned no analysis for %q", keyword)
					return nil
				}
				analyses[i] = analysis
				return nil
			}
			if serp.IsFatal(err) {
				return err
			}
			if gctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				return err
			}
			failures[i] = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return analyses, failures, nil
}

func attemptsOf(err error) int {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	return 1
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
