package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"serp-go/pkg/model"
	"serp-go/pkg/serp"
)

type scriptedResolver struct {
	mu       sync.Mutex
	failures map[string]int   // keyword -> failures before success (-1: always)
	fatal    map[string]bool  // keyword -> return a fatal error
	calls    map[string]int
	domains  map[string][]string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newScriptedResolver() *scriptedResolver {
	return &scriptedResolver{
		failures: make(map[string]int),
		fatal:    make(map[string]bool),
		calls:    make(map[string]int),
		domains:  make(map[string][]string),
	}
}

func (r *scriptedResolver) Resolve(ctx context.Context, keyword, target string) (*model.KeywordAnalysis, error) {
	current := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		peak := r.maxInFlight.Load()
		if current <= peak || r.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)

	r.mu.Lock()
	r.calls[keyword]++
	call := r.calls[keyword]
	failures := r.failures[keyword]
	fatal := r.fatal[keyword]
	domains := r.domains[keyword]
	r.mu.Unlock()

	if fatal {
		return nil, &serp.Error{Kind: serp.KindConfig, Query: keyword, Err: serp.ErrMissingCredentials}
	}
	if failures < 0 || call <= failures {
		return nil, &serp.Error{Kind: serp.KindStatus, StatusCode: 503, Query: keyword, Err: errors.New("unavailable")}
	}

	results := make([]model.SearchResult, 0, len(domains))
	for _, d := range domains {
		results = append(results, model.SearchResult{URL: "https://" + d + "/"})
	}
	return serp.BuildKeywordAnalysis(keyword, target, results, 10), nil
}

func (r *scriptedResolver) callsFor(keyword string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[keyword]
}

func fastSchedulerConfig(batchSize int) SchedulerConfig {
	return SchedulerConfig{
		BatchSize:   batchSize,
		BatchDelay:  time.Millisecond,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}
}

func keywordsN(n int) []string {
	keywords := make([]string, n)
	for i := range keywords {
		keywords[i] = fmt.Sprintf("keyword %d", i)
	}
	return keywords
}

func TestBatchScheduler_ProgressAfterEachBatch(t *testing.T) {
	resolver := newScriptedResolver()
	scheduler := NewBatchScheduler(resolver, fastSchedulerConfig(5))

	var reports [][2]int
	result, err := scheduler.Run(context.Background(), keywordsN(12), "shop.example", func(processed, total int) {
		reports = append(reports, [2]int{processed, total})
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := [][2]int{{5, 12}, {10, 12}, {12, 12}}
	if fmt.Sprint(reports) != fmt.Sprint(expected) {
		t.Errorf("Expected progress %v, got %v", expected, reports)
	}
	if len(result.Resolved) != 12 {
		t.Errorf("Expected 12 resolved keywords, got %d", len(result.Resolved))
	}
	if peak := resolver.maxInFlight.Load(); peak > 5 {
		t.Errorf("Expected at most 5 concurrent lookups, got %d", peak)
	}
}

func TestBatchScheduler_PacesBatches(t *testing.T) {
	config := fastSchedulerConfig(2)
	config.BatchDelay = 30 * time.Millisecond
	scheduler := NewBatchScheduler(newScriptedResolver(), config)

	start := time.Now()
	if _, err := scheduler.Run(context.Background(), keywordsN(6), "shop.example", nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Three batches means two pauses
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("Expected at least 60ms of pacing, got %v", elapsed)
	}
}

func TestBatchScheduler_RetriesThenSucceeds(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.failures["keyword 0"] = 2

	result, err := NewBatchScheduler(resolver, fastSchedulerConfig(5)).Run(context.Background(), keywordsN(1), "shop.example", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Resolved) != 1 || len(result.Unresolved) != 0 {
		t.Errorf("Expected keyword to resolve on the third attempt, got %+v", result)
	}
	if calls := resolver.callsFor("keyword 0"); calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestBatchScheduler_DropsExhaustedKeywords(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.failures["keyword 1"] = -1

	result, err := NewBatchScheduler(resolver, fastSchedulerConfig(5)).Run(context.Background(), keywordsN(3), "shop.example", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Resolved) != 2 {
		t.Errorf("Expected 2 resolved keywords, got %d", len(result.Resolved))
	}
	for _, analysis := range result.Resolved {
		if analysis.Keyword == "keyword 1" {
			t.Error("Expected exhausted keyword to be absent from resolved results")
		}
	}
	if len(result.Unresolved) != 1 {
		t.Fatalf("Expected 1 unresolved keyword, got %d", len(result.Unresolved))
	}
	if u := result.Unresolved[0]; u.Keyword != "keyword 1" || u.Attempts != 3 || u.LastError == "" {
		t.Errorf("Unexpected unresolved record: %+v", u)
	}
	if calls := resolver.callsFor("keyword 1"); calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

func TestBatchScheduler_FatalErrorAborts(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.fatal["keyword 6"] = true

	var reports []int
	result, err := NewBatchScheduler(resolver, fastSchedulerConfig(5)).Run(context.Background(), keywordsN(12), "shop.example", func(processed, total int) {
		reports = append(reports, processed)
	})

	if !serp.IsFatal(err) {
		t.Fatalf("Expected fatal error, got %v", err)
	}
	if calls := resolver.callsFor("keyword 6"); calls != 1 {
		t.Errorf("Expected fatal keyword to be tried once, got %d", calls)
	}
	if len(result.Resolved) != 5 {
		t.Errorf("Expected first batch to be kept, got %d resolved", len(result.Resolved))
	}
	if resolver.callsFor("keyword 10") != 0 {
		t.Error("Expected no batches after the fatal error")
	}
	if len(reports) != 1 {
		t.Errorf("Expected one progress report, got %v", reports)
	}
}

func TestBatchScheduler_CollectsCompetitors(t *testing.T) {
	resolver := newScriptedResolver()
	resolver.domains["keyword 0"] = []string{"a.example", "shop.example", "b.example"}
	resolver.domains["keyword 1"] = []string{"b.example", "c.example"}

	result, err := NewBatchScheduler(resolver, fastSchedulerConfig(5)).Run(context.Background(), keywordsN(2), "www.shop.example", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if fmt.Sprint(result.Competitors) != "[a.example b.example c.example]" {
		t.Errorf("Unexpected competitors: %v", result.Competitors)
	}
}

func TestBatchScheduler_Cancellation(t *testing.T) {
	resolver := newScriptedResolver()
	config := fastSchedulerConfig(1)
	config.BatchDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewBatchScheduler(resolver, config).Run(ctx, keywordsN(3), "shop.example", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBatchScheduler_EmptyInput(t *testing.T) {
	called := false
	result, err := NewBatchScheduler(newScriptedResolver(), fastSchedulerConfig(5)).Run(context.Background(), nil, "shop.example", func(int, int) {
		called = true
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Resolved) != 0 || called {
		t.Errorf("Expected empty result without progress, got %+v (called=%v)", result, called)
	}
}

type panickingResolver struct{}

func (panickingResolver) Resolve(context.Context, string, string) (*model.KeywordAnalysis, error) {
	panic("resolver bug")
}

func TestBatchScheduler_PanicFailsRun(t *testing.T) {
	_, err := NewBatchScheduler(panickingResolver{}, fastSchedulerConfig(2)).Run(context.Background(), keywordsN(2), "shop.example", nil)

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected PanicError, got %v", err)
	}
	if fmt.Sprint(pe.Value) != "resolver bug" {
		t.Errorf("Expected panic value to be kept, got %v", pe.Value)
	}
}

type emptyResolver struct{}

func (emptyResolver) Resolve(context.Context, string, string) (*model.KeywordAnalysis, error) {
	return nil, nil
}

func TestBatchScheduler_EmptyResolutionIsUnresolved(t *testing.T) {
	result, err := NewBatchScheduler(emptyResolver{}, fastSchedulerConfig(2)).Run(context.Background(), keywordsN(3), "shop.example", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Resolved) != 0 {
		t.Errorf("Expected no resolved keywords, got %d", len(result.Resolved))
	}
	if len(result.Unresolved) != 3 {
		t.Fatalf("Expected 3 unresolved keywords, got %d", len(result.Unresolved))
	}
	for _, u := range result.Unresolved {
		if !strings.Contains(u.LastError, "no analysis") || u.Attempts != 1 {
			t.Errorf("Unexpected unresolved entry: %+v", u)
		}
	}
}
