package analyzer

import (
	"fmt"
	"sort"

	"serp-go/pkg/model"
	"serp-go/pkg/serp"
)

// topPositions is the rank at or above which the target is not flagged
const topPositions = 3

// IdentifyOpportunities lists keywords where a competitor outranks the
// target or the target is absent, highest priority first. Ties keep input
// order.
func IdentifyOpportunities(keywords []*model.KeywordAnalysis, targetDomain string) []model.Opportunity {
	target := serp.NormalizeDomain(targetDomain)
	opportunities := make([]model.Opportunity, 0)

	for _, kw := range keywords {
		if kw == nil {
			continue
		}

		best, ok := bestCompetitor(kw.CompetitorPositions, target)
		if !ok {
			continue
		}

		switch {
		case kw.TargetPosition == nil:
			opportunities = append(opportunities, model.Opportunity{
				Keyword:                kw.Keyword,
				Type:                   model.OpportunityMissingKeyword,
				BestCompetitorPosition: best.Position,
				BestCompetitorDomain:   best.Domain,
				PriorityScore:          100 - best.Position,
				GapSize:                100,
				RecommendedAction: fmt.Sprintf("Create content targeting %q; %s ranks #%d and you are not in the top results",
					kw.Keyword, best.Domain, best.Position),
			})

		case *kw.TargetPosition > best.Position && *kw.TargetPosition > topPositions:
			position := *kw.TargetPosition
			opportunities = append(opportunities, model.Opportunity{
				Keyword:                kw.Keyword,
				Type:                   model.OpportunityLowPosition,
				TargetPosition:         model.IntPtr(position),
				BestCompetitorPosition: best.Position,
				BestCompetitorDomain:   best.Domain,
				PriorityScore:          max(0, 50-best.Position),
				GapSize:                position - best.Position,
				RecommendedAction: fmt.Sprintf("Improve the page ranking #%d for %q to close the %d-position gap to %s",
					position, kw.Keyword, position-best.Position, best.Domain),
			})
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].PriorityScore > opportunities[j].PriorityScore
	})

	return opportunities
}

func bestCompetitor(positions []model.CompetitorPosition, target string) (model.CompetitorPosition, bool) {
	var best model.CompetitorPosition
	found := false
	for _, pos := range positions {
		if pos.Domain == target {
			continue
		}
		if !found || pos.Position < best.Position {
			best = pos
			found = true
		}
	}
	return best, found
}
