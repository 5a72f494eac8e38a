package pipeline

import (
	"context"
	"errors"
	"fmt"

	"serp-go/pkg/keyword"
	"serp-go/pkg/logger"
	"serp-go/pkg/model"
	"serp-go/pkg/retry"
	"serp-go/pkg/serp"
	"serp-go/pkg/storage"
	"serp-go/pkg/worker"
)

// ReverifyRequest asks for one keyword of an existing analysis to be re-run
type ReverifyRequest struct {
	AnalysisID string `json:"-"`
	Keyword    string `json:"keyword"`
	// TargetDomain defaults to the analysis' target when empty
	TargetDomain string `json:"target_domain"`
}

// ReverifyResult reports the target's position before and after
type ReverifyResult struct {
	Keyword          string `json:"keyword"`
	PreviousPosition *int   `json:"previous_position"`
	NewPosition      *int   `json:"new_position"`
}

// Reverifier re-resolves single keywords and overwrites their stored rows.
// Only keywords the analysis already resolved can be reverified.
// Competitor and opportunity rows are left as computed by the original run.
type Reverifier struct {
	store    storage.Store
	resolver worker.Resolver
	policy   retry.Policy
	log      *logger.Logger
}

// NewReverifier creates a reverifier. resolver should bypass any result cache.
func NewReverifier(store storage.Store, resolver worker.Resolver, policy retry.Policy) *Reverifier {
	if policy.IsRetryable == nil {
		policy.IsRetryable = serp.IsRetryable
	}
	return &Reverifier{
		store:    store,
		resolver: resolver,
		policy:   policy,
		log:      logger.GetLogger().WithField("component", "reverifier"),
	}
}

func (r *Reverifier) Reverify(ctx context.Context, req ReverifyRequest) (*ReverifyResult, error) {
	analysis, err := r.store.GetAnalysis(ctx, req.AnalysisID)
	if err != nil {
		return nil, err
	}

	target := analysis.TargetDomain
	if req.TargetDomain != "" {
		if requested := serp.NormalizeDomain(req.TargetDomain); requested != target {
			return nil, fmt.Errorf("%w: %q is not %q", ErrTargetMismatch, requested, target)
		}
	}

	kw := keyword.Canonical(req.Keyword)
	if kw == "" {
		return nil, fmt.Errorf("%w: keyword is required", ErrInvalidRequest)
	}

	existing, err := r.store.GetKeywordAnalysis(ctx, analysis.ID, kw)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: keyword %q was not resolved in analysis %s", storage.ErrNotFound, kw, analysis.ID)
	}
	if err != nil {
		return nil, err
	}

	fresh, err := retry.Do(ctx, r.policy, func(ctx context.Context) (*model.KeywordAnalysis, error) {
		return r.resolver.Resolve(ctx, kw, target)
	})
	if err != nil {
		return nil, fmt.Errorf("reverify %q: %w", kw, err)
	}
	if fresh.SearchVolume == nil {
		fresh.SearchVolume = existing.SearchVolume
	}

	previous, err := r.store.UpsertKeywordAnalysis(ctx, analysis.ID, fresh)
	if err != nil {
		return nil, fmt.Errorf("store reverified keyword: %w", err)
	}

	result := &ReverifyResult{Keyword: kw, NewPosition: fresh.TargetPosition}
	if previous != nil {
		result.PreviousPosition = previous.TargetPosition
	}

	r.log.WithFields(map[string]interface{}{
		"analysis_id": analysis.ID,
		"keyword":     kw,
		"previous":    result.PreviousPosition,
		"current":     result.NewPosition,
	}).Info("Keyword reverified")
	return result, nil
}
