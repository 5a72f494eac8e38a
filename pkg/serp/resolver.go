package serp

import (
	"context"
	"time"

	"serp-go/pkg/logger"
	"serp-go/pkg/model"
)

// Resolver turns one keyword into ranked domain positions via the oracle
type Resolver struct {
	client          SearchClient
	resultsPerQuery int
	log             *logger.Logger
}

// NewResolver creates a resolver requesting resultsPerQuery results per keyword
func NewResolver(client SearchClient, resultsPerQuery int) *Resolver {
	if resultsPerQuery <= 0 {
		resultsPerQuery = DefaultResultsPerQuery
	}
	return &Resolver{
		client:          client,
		resultsPerQuery: resultsPerQuery,
		log:             logger.GetLogger().WithField("component", "serp_resolver"),
	}
}

// Resolve issues a single oracle query and maps the result list. It does not
// retry; callers wrap it in a retry policy.
func (r *Resolver) Resolve(ctx context.Context, keyword, targetDomain string) (*model.KeywordAnalysis, error) {
	results, err := r.client.Search(ctx, keyword, r.resultsPerQuery)
	if err != nil {
		return nil, err
	}

	analysis := BuildKeywordAnalysis(keyword, targetDomain, results, r.resultsPerQuery)
	r.log.WithFields(map[string]interface{}{
		"keyword":     keyword,
		"results":     len(results),
		"domains":     len(analysis.CompetitorPositions),
		"target_rank": analysis.TargetPosition,
	}).Debug("Keyword resolved")
	return analysis, nil
}

// BuildKeywordAnalysis maps an ordered result list to positions. Rank is the
// 1-based index in the list; each domain keeps only its best rank.
func BuildKeywordAnalysis(keyword, targetDomain string, results []model.SearchResult, limit int) *model.KeywordAnalysis {
	target := NormalizeDomain(targetDomain)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	seen := make(map[string]bool, len(results))
	positions := make([]model.CompetitorPosition, 0, len(results))
	var targetPosition *int

	for i, result := range results {
		domain := ExtractDomain(result.URL)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true

		rank := i + 1
		positions = append(positions, model.CompetitorPosition{
			Domain:   domain,
			Position: rank,
			URL:      result.URL,
			Title:    result.Title,
		})
		if target != "" && domain == target {
			targetPosition = model.IntPtr(rank)
		}
	}

	return &model.KeywordAnalysis{
		Keyword:             keyword,
		TargetPosition:      targetPosition,
		CompetitorPositions: positions,
		CompetitionLevel:    ClassifyCompetition(len(positions)),
		CheckedAt:           time.Now().UTC(),
	}
}

// ClassifyCompetition labels a result page by how many distinct domains it
// holds: few domains means a few strong sites dominate
func ClassifyCompetition(distinctDomains int) model.CompetitionLevel {
	switch {
	case distinctDomains <= 3:
		return model.CompetitionHigh
	case distinctDomains <= 6:
		return model.CompetitionMedium
	default:
		return model.CompetitionLow
	}
}
