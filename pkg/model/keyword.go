package model

import "time"

// CompetitionLevel is a heuristic label derived from how concentrated a SERP is.
// It is not a verified difficulty signal.
type CompetitionLevel string

const (
	CompetitionLow    CompetitionLevel = "low"
	CompetitionMedium CompetitionLevel = "medium"
	CompetitionHigh   CompetitionLevel = "high"
)

// SearchResult is one organic result returned by the search oracle
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// CompetitorPosition is the ranked slot a domain holds for one keyword
type CompetitorPosition struct {
	Domain   string `json:"domain"`
	Position int    `json:"position"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// KeywordAnalysis is one resolved keyword within an Analysis
type KeywordAnalysis struct {
	Keyword             string               `json:"keyword"`
	TargetPosition      *int                 `json:"target_position"`
	CompetitorPositions []CompetitorPosition `json:"competitor_positions"`
	CompetitionLevel    CompetitionLevel     `json:"competition_level"`
	SearchVolume        *int                 `json:"search_volume,omitempty"`
	CheckedAt           time.Time            `json:"checked_at"`
}

// UnresolvedKeyword records a keyword dropped after its retries were exhausted
type UnresolvedKeyword struct {
	Keyword   string    `json:"keyword"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	FailedAt  time.Time `json:"failed_at"`
}

// CompetitorDomain holds aggregated statistics for one domain across an Analysis
type CompetitorDomain struct {
	Domain             string  `json:"domain"`
	TotalKeywordsFound int     `json:"total_keywords_found"`
	AveragePosition    float64 `json:"average_position"`
	ShareOfVoice       float64 `json:"share_of_voice"`
	RelevanceScore     float64 `json:"relevance_score"`
	IsAutoDiscovered   bool    `json:"is_auto_discovered"`
}

// OpportunityType classifies a ranking gap
type OpportunityType string

const (
	OpportunityMissingKeyword OpportunityType = "missing_keyword"
	OpportunityLowPosition    OpportunityType = "low_position"
)

// Opportunity is one actionable gap derived from a KeywordAnalysis
type Opportunity struct {
	Keyword                string          `json:"keyword"`
	Type                   OpportunityType `json:"opportunity_type"`
	TargetPosition         *int            `json:"target_position"`
	BestCompetitorPosition int             `json:"best_competitor_position"`
	BestCompetitorDomain   string          `json:"best_competitor_domain"`
	PriorityScore          int             `json:"priority_score"`
	GapSize                int             `json:"gap_size"`
	RecommendedAction      string          `json:"recommended_action"`
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
