package serp

import (
	"context"
	"time"

	"serp-go/pkg/model"
)

// DefaultResultsPerQuery is how many organic results are requested per keyword
const DefaultResultsPerQuery = 10

// SearchClient is the search-ranking oracle: given a query it returns up to
// num ordered organic results
type SearchClient interface {
	Search(ctx context.Context, query string, num int) ([]model.SearchResult, error)
}

// Cache stores oracle result lists by key
type Cache interface {
	Get(ctx context.Context, key string) ([]model.SearchResult, bool, error)
	Set(ctx context.Context, key string, results []model.SearchResult, ttl time.Duration) error
}

// VolumeClient looks up monthly search volume hints for keywords
type VolumeClient interface {
	Lookup(ctx context.Context, keywords []string) (map[string]int, error)
}
