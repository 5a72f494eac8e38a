package analyzer

import (
	"testing"

	"serp-go/pkg/model"
)

func keywordAt(keyword string, target *int, positions ...model.CompetitorPosition) *model.KeywordAnalysis {
	return &model.KeywordAnalysis{
		Keyword:             keyword,
		TargetPosition:      target,
		CompetitorPositions: positions,
	}
}

func at(domain string, position int) model.CompetitorPosition {
	return model.CompetitorPosition{Domain: domain, Position: position}
}

func TestScore_Example(t *testing.T) {
	keywords := []*model.KeywordAnalysis{
		keywordAt("a", model.IntPtr(1)),
		keywordAt("b", model.IntPtr(3)),
		keywordAt("c", model.IntPtr(7)),
		keywordAt("d", nil),
	}

	if got := Score(keywords); got != 73 {
		t.Errorf("Expected score 73, got %d", got)
	}
}

func TestScore_NoRankedKeywords(t *testing.T) {
	if got := Score(nil); got != 0 {
		t.Errorf("Expected 0 for no keywords, got %d", got)
	}
	if got := Score([]*model.KeywordAnalysis{keywordAt("a", nil)}); got != 0 {
		t.Errorf("Expected 0 when target never ranks, got %d", got)
	}
}

func TestPositionScore_Monotonic(t *testing.T) {
	tests := []struct {
		position int
		expected int
	}{
		{1, 100}, {2, 80}, {3, 80}, {4, 60}, {5, 60},
		{6, 40}, {10, 40}, {11, 20}, {50, 20},
	}
	for _, test := range tests {
		if got := PositionScore(test.position); got != test.expected {
			t.Errorf("PositionScore(%d) = %d, want %d", test.position, got, test.expected)
		}
	}

	for p := 1; p < 30; p++ {
		if PositionScore(p+1) > PositionScore(p) {
			t.Errorf("Score increased from position %d to %d", p, p+1)
		}
	}
}

func TestIdentifyOpportunities_MissingKeyword(t *testing.T) {
	keywords := []*model.KeywordAnalysis{
		keywordAt("x", nil, at("a.com", 2)),
	}

	opportunities := IdentifyOpportunities(keywords, "shop.example")
	if len(opportunities) != 1 {
		t.Fatalf("Expected 1 opportunity, got %d", len(opportunities))
	}

	o := opportunities[0]
	if o.Type != model.OpportunityMissingKeyword {
		t.Errorf("Expected missing_keyword, got %s", o.Type)
	}
	if o.BestCompetitorPosition != 2 || o.BestCompetitorDomain != "a.com" {
		t.Errorf("Unexpected best competitor: %s@%d", o.BestCompetitorDomain, o.BestCompetitorPosition)
	}
	if o.GapSize != 100 || o.PriorityScore != 98 {
		t.Errorf("Expected gap 100 and priority 98, got %d and %d", o.GapSize, o.PriorityScore)
	}
	if o.TargetPosition != nil {
		t.Error("Expected no target position")
	}
	if o.RecommendedAction == "" {
		t.Error("Expected a recommended action")
	}
}

func TestIdentifyOpportunities_Rules(t *testing.T) {
	tests := []struct {
		name     string
		keyword  *model.KeywordAnalysis
		expected []model.OpportunityType
		priority int
		gap      int
	}{
		{
			name:     "low position behind competitor",
			keyword:  keywordAt("k", model.IntPtr(8), at("a.com", 2), at("shop.example", 8)),
			expected: []model.OpportunityType{model.OpportunityLowPosition},
			priority: 48,
			gap:      6,
		},
		{
			name:     "behind competitor but already top 3",
			keyword:  keywordAt("k", model.IntPtr(3), at("a.com", 1), at("shop.example", 3)),
			expected: nil,
		},
		{
			name:     "ahead of every competitor",
			keyword:  keywordAt("k", model.IntPtr(4), at("shop.example", 4), at("a.com", 5)),
			expected: nil,
		},
		{
			name:     "no competitors",
			keyword:  keywordAt("k", nil),
			expected: nil,
		},
		{
			name:     "only the target ranks",
			keyword:  keywordAt("k", model.IntPtr(1), at("shop.example", 1)),
			expected: nil,
		},
		{
			name:     "priority floors at zero",
			keyword:  keywordAt("k", model.IntPtr(70), at("a.com", 60), at("shop.example", 70)),
			expected: []model.OpportunityType{model.OpportunityLowPosition},
			priority: 0,
			gap:      10,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := IdentifyOpportunities([]*model.KeywordAnalysis{test.keyword}, "shop.example")
			if len(got) != len(test.expected) {
				t.Fatalf("Expected %d opportunities, got %d (%+v)", len(test.expected), len(got), got)
			}
			for i, typ := range test.expected {
				if got[i].Type != typ {
					t.Errorf("Expected %s, got %s", typ, got[i].Type)
				}
				if got[i].PriorityScore != test.priority || got[i].GapSize != test.gap {
					t.Errorf("Expected priority %d gap %d, got %d and %d", test.priority, test.gap, got[i].PriorityScore, got[i].GapSize)
				}
			}
		})
	}
}

func TestIdentifyOpportunities_StableOrdering(t *testing.T) {
	keywords := []*model.KeywordAnalysis{
		keywordAt("first", nil, at("a.com", 5)),
		keywordAt("second", nil, at("b.com", 1)),
		keywordAt("third", nil, at("c.com", 5)),
	}

	got := IdentifyOpportunities(keywords, "shop.example")
	order := []string{got[0].Keyword, got[1].Keyword, got[2].Keyword}
	expected := []string{"second", "first", "third"}
	for i := range expected {
		if order[i] != expected[i] {
			t.Fatalf("Expected order %v, got %v", expected, order)
		}
	}
}

func TestAggregate(t *testing.T) {
	keywords := []*model.KeywordAnalysis{
		keywordAt("buy shoes", model.IntPtr(1), at("shop.example", 1), at("rival.com", 2)),
		keywordAt("running shoes", nil, at("other.com", 1), at("rival.com", 3)),
	}

	competitors := Aggregate(keywords, "shop.example", []string{"www.known.com"})
	if len(competitors) != 3 {
		t.Fatalf("Expected 3 competitors, got %d (%+v)", len(competitors), competitors)
	}

	byDomain := make(map[string]model.CompetitorDomain)
	for _, c := range competitors {
		byDomain[c.Domain] = c
		if c.Domain == "shop.example" {
			t.Error("Target domain must not be a competitor")
		}
		if c.ShareOfVoice < 0 || c.ShareOfVoice > 1 {
			t.Errorf("Share of voice out of bounds for %s: %v", c.Domain, c.ShareOfVoice)
		}
	}

	rival := byDomain["rival.com"]
	if rival.TotalKeywordsFound != 2 || rival.ShareOfVoice != 1.0 || rival.AveragePosition != 2.5 {
		t.Errorf("Unexpected rival stats: %+v", rival)
	}
	if rival.RelevanceScore != 117.5 || !rival.IsAutoDiscovered {
		t.Errorf("Unexpected rival relevance: %+v", rival)
	}

	known := byDomain["known.com"]
	if known.TotalKeywordsFound != 0 || known.AveragePosition != 0 || known.ShareOfVoice != 0 {
		t.Errorf("Unexpected known competitor stats: %+v", known)
	}
	if known.RelevanceScore != 0 || known.IsAutoDiscovered {
		t.Errorf("Unexpected known competitor relevance: %+v", known)
	}

	if competitors[0].Domain != "rival.com" || competitors[2].Domain != "known.com" {
		t.Errorf("Unexpected ordering: %v, %v, %v", competitors[0].Domain, competitors[1].Domain, competitors[2].Domain)
	}
}

func TestAggregate_TiesBreakByDomain(t *testing.T) {
	keywords := []*model.KeywordAnalysis{
		keywordAt("k", nil, at("zeta.com", 2), at("alpha.com", 3)),
		keywordAt("j", nil, at("alpha.com", 1), at("zeta.com", 2)),
	}

	competitors := Aggregate(keywords, "shop.example", nil)
	if competitors[0].Domain != "alpha.com" || competitors[1].Domain != "zeta.com" {
		t.Errorf("Expected alphabetical tie-break, got %s then %s", competitors[0].Domain, competitors[1].Domain)
	}
}

func TestAggregate_NoKeywords(t *testing.T) {
	competitors := Aggregate(nil, "shop.example", []string{"rival.com", "shop.example"})
	if len(competitors) != 1 {
		t.Fatalf("Expected only the supplied competitor, got %+v", competitors)
	}
	if competitors[0].ShareOfVoice != 0 {
		t.Errorf("Expected zero share of voice, got %v", competitors[0].ShareOfVoice)
	}
}

func TestRelevance_Monotonic(t *testing.T) {
	if Relevance(3, 5) < Relevance(2, 5) {
		t.Error("Relevance must not decrease with appearances")
	}
	if Relevance(2, 8) > Relevance(2, 4) {
		t.Error("Relevance must not increase with worse average position")
	}
	if Relevance(0, 0) != 0 {
		t.Errorf("Expected zero relevance for an absent domain, got %v", Relevance(0, 0))
	}
}
