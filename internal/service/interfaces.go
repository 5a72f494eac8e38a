package service

import (
	"context"

	"serp-go/pkg/pipeline"
	"serp-go/pkg/serp"
	"serp-go/pkg/worker"
)

// AnalysisService is the analysis surface the HTTP layer depends on.
// *pipeline.Service implements it.
type AnalysisService interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (string, error)
	Status(ctx context.Context, id string) (*pipeline.StatusView, error)
	Results(ctx context.Context, id string) (*pipeline.ResultsView, error)
	Reverify(ctx context.Context, req pipeline.ReverifyRequest) (*pipeline.ReverifyResult, error)
}

// StatsProvider exposes worker pool metrics. *worker.WorkerPool implements it.
type StatsProvider interface {
	Stats() worker.PoolStats
}

// CacheStatsProvider exposes search result cache counters.
// *serp.CachingClient implements it.
type CacheStatsProvider interface {
	Stats() serp.CacheStats
}

var (
	_ AnalysisService    = (*pipeline.Service)(nil)
	_ StatsProvider      = (*worker.WorkerPool)(nil)
	_ CacheStatsProvider = (*serp.CachingClient)(nil)
)
