package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"serp-go/pkg/logger"
	"serp-go/pkg/model"
	"serp-go/pkg/serp"
	"serp-go/pkg/storage"
	"serp-go/pkg/worker"
)

// TaskSubmitter queues background work; *worker.WorkerPool satisfies it
type TaskSubmitter interface {
	Submit(task worker.Task) error
}

// SubmitRequest starts a new analysis
type SubmitRequest struct {
	UserID                string   `json:"-"`
	TargetDomain          string   `json:"target_domain"`
	Keywords              []string `json:"keywords"`
	AdditionalCompetitors []string `json:"additional_competitors,omitempty"`
}

// StatusView is what a polling caller sees. Totals and score are only set
// once the analysis completed.
type StatusView struct {
	ID               string         `json:"analysis_id"`
	TargetDomain     string         `json:"target_domain"`
	Status           model.Status   `json:"status"`
	TotalKeywords    *int           `json:"total_keywords,omitempty"`
	TotalCompetitors *int           `json:"total_competitors,omitempty"`
	OverallScore     *int           `json:"overall_score,omitempty"`
	Progress         model.Progress `json:"progress"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// ResultsView holds every derived row of an analysis
type ResultsView struct {
	AnalysisID    string                    `json:"analysis_id"`
	Status        model.Status              `json:"status"`
	OverallScore  *int                      `json:"overall_score,omitempty"`
	Competitors   []model.CompetitorDomain  `json:"competitors"`
	Keywords      []*model.KeywordAnalysis  `json:"keywords"`
	Opportunities []model.Opportunity       `json:"opportunities"`
	Unresolved    []model.UnresolvedKeyword `json:"unresolved"`
}

// Service is the entry point for submitting and inspecting analyses
type Service struct {
	store        storage.Store
	orchestrator *Orchestrator
	reverifier   *Reverifier
	pool         TaskSubmitter
	log          *logger.Logger
}

// NewService creates the analysis service. pool may be nil when only
// Analyze is used.
func NewService(store storage.Store, orchestrator *Orchestrator, reverifier *Reverifier, pool TaskSubmitter) *Service {
	return &Service{
		store:        store,
		orchestrator: orchestrator,
		reverifier:   reverifier,
		pool:         pool,
		log:          logger.GetLogger().WithField("component", "analysis_service"),
	}
}

// Submit persists a pending analysis and schedules it in the background.
// If the run can not be scheduled the analysis is marked failed and
// ErrUnavailable is returned together with its ID.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if s.pool == nil {
		return "", fmt.Errorf("%w: no worker pool configured", ErrUnavailable)
	}

	analysis, err := s.create(ctx, req)
	if err != nil {
		return "", err
	}
	id := analysis.ID

	err = s.pool.Submit(worker.Task{
		ID: id,
		Fn: func(ctx context.Context) error {
			return s.orchestrator.Run(ctx, id)
		},
	})
	if err != nil {
		s.log.WithError(err).WithField("analysis_id", id).Warn("Could not schedule analysis")
		progress := model.Progress{Stage: model.StageFailed, LastError: "could not schedule analysis: " + err.Error()}
		if terr := s.store.TransitionStatus(ctx, id, model.StatusPending, model.StatusFailed, progress); terr != nil {
			s.log.WithError(terr).WithField("analysis_id", id).Error("Failed to record scheduling failure")
		}
		return id, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.log.WithFields(map[string]interface{}{
		"analysis_id": id,
		"target":      analysis.TargetDomain,
		"keywords":    len(analysis.Keywords),
	}).Info("Analysis submitted")
	return id, nil
}

// Analyze creates an analysis and runs it on the calling goroutine
func (s *Service) Analyze(ctx context.Context, req SubmitRequest) (string, error) {
	analysis, err := s.create(ctx, req)
	if err != nil {
		return "", err
	}
	return analysis.ID, s.orchestrator.Run(ctx, analysis.ID)
}

func (s *Service) create(ctx context.Context, req SubmitRequest) (*model.Analysis, error) {
	target := serp.NormalizeDomain(req.TargetDomain)
	if target == "" {
		return nil, fmt.Errorf("%w: target_domain is required", ErrInvalidRequest)
	}

	keywords := make([]string, 0, len(req.Keywords))
	for _, kw := range req.Keywords {
		if strings.TrimSpace(kw) != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: at least one keyword is required", ErrInvalidRequest)
	}

	competitors := make([]string, 0, len(req.AdditionalCompetitors))
	for _, c := range req.AdditionalCompetitors {
		if d := serp.NormalizeDomain(c); d != "" && d != target {
			competitors = append(competitors, d)
		}
	}

	now := time.Now().UTC()
	analysis := &model.Analysis{
		ID:                    uuid.New().String(),
		UserID:                req.UserID,
		TargetDomain:          target,
		Keywords:              keywords,
		AdditionalCompetitors: competitors,
		Status:                model.StatusPending,
		Progress:              model.Progress{Stage: model.StageQueued},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.CreateAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}
	return analysis, nil
}

// Status returns the polling view of an analysis
func (s *Service) Status(ctx context.Context, id string) (*StatusView, error) {
	analysis, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &StatusView{
		ID:           analysis.ID,
		TargetDomain: analysis.TargetDomain,
		Status:       analysis.Status,
		Progress:     analysis.Progress,
		CreatedAt:    analysis.CreatedAt,
		CompletedAt:  analysis.CompletedAt,
	}
	if analysis.Status == model.StatusCompleted {
		view.TotalKeywords = model.IntPtr(analysis.TotalKeywords)
		view.TotalCompetitors = model.IntPtr(analysis.TotalCompetitors)
		view.OverallScore = analysis.OverallScore
	}
	return view, nil
}

// Results returns every stored row of an analysis. Partial rows of a failed
// analysis are included.
func (s *Service) Results(ctx context.Context, id string) (*ResultsView, error) {
	analysis, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &ResultsView{
		AnalysisID:   analysis.ID,
		Status:       analysis.Status,
		OverallScore: analysis.OverallScore,
	}
	if view.Competitors, err = s.store.ListCompetitorDomains(ctx, id); err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	if view.Keywords, err = s.store.ListKeywordAnalyses(ctx, id); err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	if view.Opportunities, err = s.store.ListOpportunities(ctx, id); err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	if view.Unresolved, err = s.store.ListUnresolvedKeywords(ctx, id); err != nil {
		return nil, fmt.Errorf("list unresolved keywords: %w", err)
	}
	return view, nil
}

// Reverify re-runs one keyword of an existing analysis
func (s *Service) Reverify(ctx context.Context, req ReverifyRequest) (*ReverifyResult, error) {
	return s.reverifier.Reverify(ctx, req)
}
