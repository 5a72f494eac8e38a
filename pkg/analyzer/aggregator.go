package analyzer

import (
	"sort"

	"serp-go/pkg/model"
	"serp-go/pkg/serp"
)

// absentPosition is the rank assumed for a domain that never appeared
const absentPosition = 100

// Aggregate builds per-domain statistics over resolved keywords. Every
// observed non-target domain is included along with every known competitor,
// even one that never appeared. The target itself is never a competitor.
func Aggregate(keywords []*model.KeywordAnalysis, targetDomain string, known []string) []model.CompetitorDomain {
	target := serp.NormalizeDomain(targetDomain)

	type tally struct {
		appearances int
		positionSum int
		discovered  bool
	}
	tallies := make(map[string]*tally)

	for _, domain := range known {
		domain = serp.NormalizeDomain(domain)
		if domain == "" || domain == target {
			continue
		}
		if _, ok := tallies[domain]; !ok {
			tallies[domain] = &tally{}
		}
	}

	resolved := 0
	for _, kw := range keywords {
		if kw == nil {
			continue
		}
		resolved++
		for _, pos := range kw.CompetitorPositions {
			if pos.Domain == "" || pos.Domain == target {
				continue
			}
			t, ok := tallies[pos.Domain]
			if !ok {
				t = &tally{discovered: true}
				tallies[pos.Domain] = t
			}
			t.appearances++
			t.positionSum += pos.Position
		}
	}

	competitors := make([]model.CompetitorDomain, 0, len(tallies))
	for domain, t := range tallies {
		var average float64
		if t.appearances > 0 {
			average = float64(t.positionSum) / float64(t.appearances)
		}

		var share float64
		if resolved > 0 {
			share = float64(t.appearances) / float64(resolved)
		}

		competitors = append(competitors, model.CompetitorDomain{
			Domain:             domain,
			TotalKeywordsFound: t.appearances,
			AveragePosition:    average,
			ShareOfVoice:       share,
			RelevanceScore:     Relevance(t.appearances, average),
			IsAutoDiscovered:   t.discovered,
		})
	}

	sort.Slice(competitors, func(i, j int) bool {
		if competitors[i].RelevanceScore != competitors[j].RelevanceScore {
			return competitors[i].RelevanceScore > competitors[j].RelevanceScore
		}
		return competitors[i].Domain < competitors[j].Domain
	})

	return competitors
}

// Relevance rewards frequent appearances and good average rank:
// max(0, appearances*10 + (100 - average)). A domain with no appearances is
// scored as if it ranked 100th.
func Relevance(appearances int, averagePosition float64) float64 {
	if appearances == 0 {
		averagePosition = absentPosition
	}
	score := float64(appearances*10) + (100 - averagePosition)
	if score < 0 {
		return 0
	}
	return score
}
