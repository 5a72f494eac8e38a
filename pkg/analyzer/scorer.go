package analyzer

import (
	"math"

	"serp-go/pkg/model"
)

// PositionScore maps a rank to its step-function score
func PositionScore(position int) int {
	switch {
	case position <= 1:
		return 100
	case position <= 3:
		return 80
	case position <= 5:
		return 60
	case position <= 10:
		return 40
	default:
		return 20
	}
}

// Score is the rounded mean PositionScore over keywords where the target
// ranks; 0 when it ranks for none
func Score(keywords []*model.KeywordAnalysis) int {
	total, ranked := 0, 0
	for _, kw := range keywords {
		if kw == nil || kw.TargetPosition == nil {
			continue
		}
		total += PositionScore(*kw.TargetPosition)
		ranked++
	}
	if ranked == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(ranked)))
}
