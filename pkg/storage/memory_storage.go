package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"serp-go/pkg/model"
)

// MemoryStorage is an in-process Store. Records are kept JSON-encoded so
// callers never share memory with stored values.
type MemoryStorage struct {
	mu            sync.RWMutex
	analyses      map[string][]byte
	keywords      map[string]map[string][]byte
	keywordOrder  map[string][]string
	competitors   map[string][]byte
	opportunities map[string][]byte
	unresolved    map[string][]byte
}

// NewMemoryStorage creates a new memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		analyses:      make(map[string][]byte),
		keywords:      make(map[string]map[string][]byte),
		keywordOrder:  make(map[string][]string),
		competitors:   make(map[string][]byte),
		opportunities: make(map[string][]byte),
		unresolved:    make(map[string][]byte),
	}
}

func encode(data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	return jsonData, nil
}

func decode(jsonData []byte, dest interface{}) error {
	if err := json.Unmarshal(jsonData, dest); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

func (ms *MemoryStorage) CreateAnalysis(_ context.Context, analysis *model.Analysis) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.analyses[analysis.ID]; exists {
		return fmt.Errorf("analysis %s already exists", analysis.ID)
	}
	jsonData, err := encode(analysis)
	if err != nil {
		return err
	}
	ms.analyses[analysis.ID] = jsonData
	ms.keywords[analysis.ID] = make(map[string][]byte)
	return nil
}

func (ms *MemoryStorage) GetAnalysis(_ context.Context, id string) (*model.Analysis, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.loadAnalysis(id)
}

// loadAnalysis must be called with the lock held
func (ms *MemoryStorage) loadAnalysis(id string) (*model.Analysis, error) {
	jsonData, exists := ms.analyses[id]
	if !exists {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	var analysis model.Analysis
	if err := decode(jsonData, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// updateAnalysis applies fn to the stored analysis and writes it back
func (ms *MemoryStorage) updateAnalysis(id string, fn func(a *model.Analysis) error) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	analysis, err := ms.loadAnalysis(id)
	if err != nil {
		return err
	}
	if err := fn(analysis); err != nil {
		return err
	}
	analysis.UpdatedAt = time.Now().UTC()

	jsonData, err := encode(analysis)
	if err != nil {
		return err
	}
	ms.analyses[id] = jsonData
	return nil
}

func (ms *MemoryStorage) UpdateProgress(_ context.Context, id string, progress model.Progress) error {
	return ms.updateAnalysis(id, func(a *model.Analysis) error {
		if a.Status.IsTerminal() {
			return fmt.Errorf("%w: analysis %s is %s", ErrInvalidTransition, id, a.Status)
		}
		a.Progress = progress
		return nil
	})
}

func (ms *MemoryStorage) TransitionStatus(_ context.Context, id string, from, to model.Status, progress model.Progress) error {
	return ms.updateAnalysis(id, func(a *model.Analysis) error {
		if a.Status != from || !from.CanTransition(to) {
			return fmt.Errorf("%w: analysis %s is %s, wanted %s -> %s", ErrInvalidTransition, id, a.Status, from, to)
		}
		a.Status = to
		a.Progress = progress
		return nil
	})
}

func (ms *MemoryStorage) CompleteAnalysis(_ context.Context, id string, completion model.Completion, progress model.Progress) error {
	return ms.updateAnalysis(id, func(a *model.Analysis) error {
		if a.Status != model.StatusAnalyzing {
			return fmt.Errorf("%w: analysis %s is %s, wanted %s -> %s", ErrInvalidTransition, id, a.Status, model.StatusAnalyzing, model.StatusCompleted)
		}
		now := time.Now().UTC()
		a.Status = model.StatusCompleted
		a.TotalKeywords = completion.TotalKeywords
		a.TotalCompetitors = completion.TotalCompetitors
		a.OverallScore = model.IntPtr(completion.OverallScore)
		a.CompletedAt = &now
		a.Progress = progress
		return nil
	})
}

func (ms *MemoryStorage) SaveKeywordAnalyses(_ context.Context, analysisID string, keywords []*model.KeywordAnalysis) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.analyses[analysisID]; !exists {
		return fmt.Errorf("analysis %s: %w", analysisID, ErrNotFound)
	}
	for _, kw := range keywords {
		if err := ms.putKeyword(analysisID, kw); err != nil {
			return err
		}
	}
	return nil
}

// putKeyword must be called with the write lock held
func (ms *MemoryStorage) putKeyword(analysisID string, kw *model.KeywordAnalysis) error {
	jsonData, err := encode(kw)
	if err != nil {
		return err
	}
	rows := ms.keywords[analysisID]
	if _, exists := rows[kw.Keyword]; !exists {
		ms.keywordOrder[analysisID] = append(ms.keywordOrder[analysisID], kw.Keyword)
	}
	rows[kw.Keyword] = jsonData
	return nil
}

func (ms *MemoryStorage) UpsertKeywordAnalysis(_ context.Context, analysisID string, kw *model.KeywordAnalysis) (*model.KeywordAnalysis, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.analyses[analysisID]; !exists {
		return nil, fmt.Errorf("analysis %s: %w", analysisID, ErrNotFound)
	}

	var previous *model.KeywordAnalysis
	if jsonData, exists := ms.keywords[analysisID][kw.Keyword]; exists {
		previous = &model.KeywordAnalysis{}
		if err := decode(jsonData, previous); err != nil {
			return nil, err
		}
	}

	if err := ms.putKeyword(analysisID, kw); err != nil {
		return nil, err
	}
	return previous, nil
}

func (ms *MemoryStorage) GetKeywordAnalysis(_ context.Context, analysisID, keyword string) (*model.KeywordAnalysis, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	jsonData, exists := ms.keywords[analysisID][keyword]
	if !exists {
		return nil, fmt.Errorf("keyword %q in analysis %s: %w", keyword, analysisID, ErrNotFound)
	}
	var kw model.KeywordAnalysis
	if err := decode(jsonData, &kw); err != nil {
		return nil, err
	}
	return &kw, nil
}

func (ms *MemoryStorage) ListKeywordAnalyses(_ context.Context, analysisID string) ([]*model.KeywordAnalysis, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rows := ms.keywords[analysisID]
	keywords := make([]*model.KeywordAnalysis, 0, len(rows))
	for _, keyword := range ms.keywordOrder[analysisID] {
		var kw model.KeywordAnalysis
		if err := decode(rows[keyword], &kw); err != nil {
			return nil, err
		}
		keywords = append(keywords, &kw)
	}
	return keywords, nil
}

// saveSet replaces the whole row set of one kind for an analysis
func (ms *MemoryStorage) saveSet(dst map[string][]byte, analysisID string, rows interface{}) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.analyses[analysisID]; !exists {
		return fmt.Errorf("analysis %s: %w", analysisID, ErrNotFound)
	}
	jsonData, err := encode(rows)
	if err != nil {
		return err
	}
	dst[analysisID] = jsonData
	return nil
}

func (ms *MemoryStorage) loadSet(src map[string][]byte, analysisID string, dest interface{}) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	jsonData, exists := src[analysisID]
	if !exists {
		return nil
	}
	return decode(jsonData, dest)
}

func (ms *MemoryStorage) SaveCompetitorDomains(_ context.Context, analysisID string, competitors []model.CompetitorDomain) error {
	return ms.saveSet(ms.competitors, analysisID, competitors)
}

func (ms *MemoryStorage) ListCompetitorDomains(_ context.Context, analysisID string) ([]model.CompetitorDomain, error) {
	competitors := []model.CompetitorDomain{}
	if err := ms.loadSet(ms.competitors, analysisID, &competitors); err != nil {
		return nil, err
	}
	if competitors == nil {
		competitors = []model.CompetitorDomain{}
	}
	return competitors, nil
}

func (ms *MemoryStorage) SaveOpportunities(_ context.Context, analysisID string, opportunities []model.Opportunity) error {
	return ms.saveSet(ms.opportunities, analysisID, opportunities)
}

func (ms *MemoryStorage) ListOpportunities(_ context.Context, analysisID string) ([]model.Opportunity, error) {
	opportunities := []model.Opportunity{}
	if err := ms.loadSet(ms.opportunities, analysisID, &opportunities); err != nil {
		return nil, err
	}
	if opportunities == nil {
		opportunities = []model.Opportunity{}
	}
	return opportunities, nil
}

func (ms *MemoryStorage) SaveUnresolvedKeywords(_ context.Context, analysisID string, keywords []model.UnresolvedKeyword) error {
	return ms.saveSet(ms.unresolved, analysisID, keywords)
}

func (ms *MemoryStorage) ListUnresolvedKeywords(_ context.Context, analysisID string) ([]model.UnresolvedKeyword, error) {
	keywords := []model.UnresolvedKeyword{}
	if err := ms.loadSet(ms.unresolved, analysisID, &keywords); err != nil {
		return nil, err
	}
	if keywords == nil {
		keywords = []model.UnresolvedKeyword{}
	}
	return keywords, nil
}

func (ms *MemoryStorage) Close() error {
	return nil
}
