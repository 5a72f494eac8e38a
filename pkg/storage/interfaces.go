package storage

import (
	"context"
	"errors"

	"serp-go/pkg/model"
)

var (
	// ErrNotFound is returned when an analysis or keyword row does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status change is not a forward
	// move from the expected current status
	ErrInvalidTransition = errors.New("invalid status transition")
)

// StorageConfig selects and configures the durable store
type StorageConfig struct {
	// Driver is "sqlite" or "memory"
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Store persists analyses and their derived rows
type Store interface {
	CreateAnalysis(ctx context.Context, analysis *model.Analysis) error
	GetAnalysis(ctx context.Context, id string) (*model.Analysis, error)
	UpdateProgress(ctx context.Context, id string, progress model.Progress) error
	// TransitionStatus moves the analysis from one status to the next only if
	// it currently holds from, writing progress in the same update
	TransitionStatus(ctx context.Context, id string, from, to model.Status, progress model.Progress) error
	// CompleteAnalysis moves an analyzing analysis to completed, writing the
	// totals, score and completion time once
	CompleteAnalysis(ctx context.Context, id string, completion model.Completion, progress model.Progress) error

	SaveKeywordAnalyses(ctx context.Context, analysisID string, keywords []*model.KeywordAnalysis) error
	// UpsertKeywordAnalysis replaces the row for (analysisID, keyword) and
	// returns the previous row, or nil if there was none
	UpsertKeywordAnalysis(ctx context.Context, analysisID string, keyword *model.KeywordAnalysis) (*model.KeywordAnalysis, error)
	GetKeywordAnalysis(ctx context.Context, analysisID, keyword string) (*model.KeywordAnalysis, error)
	ListKeywordAnalyses(ctx context.Context, analysisID string) ([]*model.KeywordAnalysis, error)

	SaveCompetitorDomains(ctx context.Context, analysisID string, competitors []model.CompetitorDomain) error
	ListCompetitorDomains(ctx context.Context, analysisID string) ([]model.CompetitorDomain, error)

	SaveOpportunities(ctx context.Context, analysisID string, opportunities []model.Opportunity) error
	ListOpportunities(ctx context.Context, analysisID string) ([]model.Opportunity, error)

	SaveUnresolvedKeywords(ctx context.Context, analysisID string, keywords []model.UnresolvedKeyword) error
	ListUnresolvedKeywords(ctx context.Context, analysisID string) ([]model.UnresolvedKeyword, error)

	Close() error
}
