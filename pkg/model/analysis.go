package model

import "time"

// Status is the lifecycle state of an Analysis
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a forward transition.
// pending→failed is only used when a run can not be scheduled at all.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusAnalyzing || next == StatusFailed
	case StatusAnalyzing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Stage names the pipeline step recorded in progress metadata
type Stage string

const (
	StageQueued      Stage = "queued"
	StageNormalizing Stage = "normalizing"
	StageResolving   Stage = "resolving"
	StageAggregating Stage = "aggregating"
	StagePersisting  Stage = "persisting"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

// Progress is the free-form progress metadata stored on an Analysis.
// It is overwritten as a whole at every stage boundary.
type Progress struct {
	Stage      Stage  `json:"stage"`
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Unresolved int    `json:"unresolved"`
	LastError  string `json:"last_error,omitempty"`
}

// Analysis is one execution of the competitive SERP pipeline for a target domain
type Analysis struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"user_id,omitempty"`
	TargetDomain          string     `json:"target_domain"`
	Keywords              []string   `json:"keywords,omitempty"`
	Status                Status     `json:"status"`
	TotalKeywords         int        `json:"total_keywords"`
	TotalCompetitors      int        `json:"total_competitors"`
	OverallScore          *int       `json:"overall_competitiveness_score,omitempty"`
	AdditionalCompetitors []string   `json:"additional_competitors,omitempty"`
	Progress              Progress   `json:"progress"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// Completion carries the values written exactly once when an analysis completes
type Completion struct {
	TotalKeywords    int
	TotalCompetitors int
	OverallScore     int
}
