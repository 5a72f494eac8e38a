package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serp-go/pkg/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// forEachStore runs fn against every Store implementation
func forEachStore(t *testing.T, fn func(t *testing.T, st Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStorage()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLiteStore(t)) })
}

func createPending(t *testing.T, st Store, id string) *model.Analysis {
	t.Helper()
	now := time.Now().UTC()
	analysis := &model.Analysis{
		ID:                    id,
		UserID:                "user-1",
		TargetDomain:          "shop.example",
		Keywords:              []string{"buy shoes", "running shoes"},
		AdditionalCompetitors: []string{"rival.com"},
		Status:                model.StatusPending,
		Progress:              model.Progress{Stage: model.StageQueued},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, st.CreateAnalysis(context.Background(), analysis))
	return analysis
}

func TestStore_CreateAndGetAnalysis(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		created := createPending(t, st, "a1")

		got, err := st.GetAnalysis(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, created.TargetDomain, got.TargetDomain)
		assert.Equal(t, created.UserID, got.UserID)
		assert.Equal(t, created.Keywords, got.Keywords)
		assert.Equal(t, created.AdditionalCompetitors, got.AdditionalCompetitors)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Equal(t, model.StageQueued, got.Progress.Stage)
		assert.Nil(t, got.OverallScore)
		assert.Nil(t, got.CompletedAt)
		assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)
	})
}

func TestStore_GetAnalysisNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		_, err := st.GetAnalysis(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_StatusLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		createPending(t, st, "a1")

		require.NoError(t, st.TransitionStatus(ctx, "a1", model.StatusPending, model.StatusAnalyzing,
			model.Progress{Stage: model.StageNormalizing}))

		require.NoError(t, st.UpdateProgress(ctx, "a1", model.Progress{Stage: model.StageResolving, Processed: 5, Total: 10}))
		got, err := st.GetAnalysis(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusAnalyzing, got.Status)
		assert.Equal(t, 5, got.Progress.Processed)

		require.NoError(t, st.CompleteAnalysis(ctx, "a1",
			model.Completion{TotalKeywords: 10, TotalCompetitors: 4, OverallScore: 73},
			model.Progress{Stage: model.StageCompleted, Processed: 10, Total: 10}))

		got, err = st.GetAnalysis(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, got.Status)
		require.NotNil(t, got.OverallScore)
		assert.Equal(t, 73, *got.OverallScore)
		assert.Equal(t, 10, got.TotalKeywords)
		assert.Equal(t, 4, got.TotalCompetitors)
		assert.NotNil(t, got.CompletedAt)

		// Terminal states never change
		err = st.TransitionStatus(ctx, "a1", model.StatusCompleted, model.StatusFailed, model.Progress{Stage: model.StageFailed})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		err = st.UpdateProgress(ctx, "a1", model.Progress{Stage: model.StageResolving})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		err = st.CompleteAnalysis(ctx, "a1", model.Completion{}, model.Progress{})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestStore_TransitionRequiresExpectedStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		createPending(t, st, "a1")

		err := st.TransitionStatus(ctx, "a1", model.StatusAnalyzing, model.StatusCompleted, model.Progress{})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		err = st.CompleteAnalysis(ctx, "a1", model.Completion{}, model.Progress{})
		assert.ErrorIs(t, err, ErrInvalidTransition, "pending analyses can not complete")

		require.NoError(t, st.TransitionStatus(ctx, "a1", model.StatusPending, model.StatusFailed,
			model.Progress{Stage: model.StageFailed, LastError: "queue full"}))
		got, err := st.GetAnalysis(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, got.Status)
		assert.Equal(t, "queue full", got.Progress.LastError)

		err = st.TransitionStatus(ctx, "missing", model.StatusPending, model.StatusAnalyzing, model.Progress{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func sampleKeyword(keyword string, target *int) *model.KeywordAnalysis {
	return &model.KeywordAnalysis{
		Keyword:        keyword,
		TargetPosition: target,
		CompetitorPositions: []model.CompetitorPosition{
			{Domain: "rival.com", Position: 2, URL: "https://rival.com/x", Title: "Rival"},
		},
		CompetitionLevel: model.CompetitionHigh,
		SearchVolume:     model.IntPtr(1200),
		CheckedAt:        time.Now().UTC(),
	}
}

func TestStore_KeywordAnalyses(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		createPending(t, st, "a1")

		require.NoError(t, st.SaveKeywordAnalyses(ctx, "a1", []*model.KeywordAnalysis{
			sampleKeyword("buy shoes", model.IntPtr(1)),
			sampleKeyword("running shoes", nil),
		}))

		keywords, err := st.ListKeywordAnalyses(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, keywords, 2)
		assert.Equal(t, "buy shoes", keywords[0].Keyword)
		assert.Equal(t, 1, *keywords[0].TargetPosition)
		assert.Nil(t, keywords[1].TargetPosition)
		assert.Equal(t, "rival.com", keywords[1].CompetitorPositions[0].Domain)
		assert.Equal(t, 1200, *keywords[1].SearchVolume)

		got, err := st.GetKeywordAnalysis(ctx, "a1", "running shoes")
		require.NoError(t, err)
		assert.Equal(t, model.CompetitionHigh, got.CompetitionLevel)

		_, err = st.GetKeywordAnalysis(ctx, "a1", "unknown")
		assert.ErrorIs(t, err, ErrNotFound)

		err = st.SaveKeywordAnalyses(ctx, "missing", []*model.KeywordAnalysis{sampleKeyword("x", nil)})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_UpsertKeywordAnalysisInPlace(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		createPending(t, st, "a1")
		require.NoError(t, st.SaveKeywordAnalyses(ctx, "a1", []*model.KeywordAnalysis{
			sampleKeyword("buy shoes", model.IntPtr(5)),
			sampleKeyword("running shoes", nil),
		}))

		previous, err := st.UpsertKeywordAnalysis(ctx, "a1", sampleKeyword("buy shoes", model.IntPtr(2)))
		require.NoError(t, err)
		require.NotNil(t, previous)
		assert.Equal(t, 5, *previous.TargetPosition)

		keywords, err := st.ListKeywordAnalyses(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, keywords, 2, "upsert must not duplicate the row")
		assert.Equal(t, "buy shoes", keywords[0].Keyword, "upsert keeps the row's position in the list")
		assert.Equal(t, 2, *keywords[0].TargetPosition)

		previous, err = st.UpsertKeywordAnalysis(ctx, "a1", sampleKeyword("new keyword", nil))
		require.NoError(t, err)
		assert.Nil(t, previous)

		_, err = st.UpsertKeywordAnalysis(ctx, "missing", sampleKeyword("x", nil))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_DerivedRows(t *testing.T) {
	forEachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		createPending(t, st, "a1")

		competitors, err := st.ListCompetitorDomains(ctx, "a1")
		require.NoError(t, err)
		assert.Empty(t, competitors)

		require.NoError(t, st.SaveCompetitorDomains(ctx, "a1", []model.CompetitorDomain{
			{Domain: "rival.com", TotalKeywordsFound: 2, AveragePosition: 2.5, ShareOfVoice: 1, RelevanceScore: 117.5, IsAutoDiscovered: true},
			{Domain: "known.com", RelevanceScore: 0},
		}))
		require.NoError(t, st.SaveOpportunities(ctx, "a1", []model.Opportunity{
			{Keyword: "running shoes", Type: model.OpportunityMissingKeyword, BestCompetitorPosition: 3, BestCompetitorDomain: "rival.com", PriorityScore: 97, GapSize: 100, RecommendedAction: "write"},
			{Keyword: "trail shoes", Type: model.OpportunityLowPosition, TargetPosition: model.IntPtr(8), BestCompetitorPosition: 2, BestCompetitorDomain: "rival.com", PriorityScore: 48, GapSize: 6, RecommendedAction: "improve"},
		}))
		require.NoError(t, st.SaveUnresolvedKeywords(ctx, "a1", []model.UnresolvedKeyword{
			{Keyword: "flaky", Attempts: 3, LastError: "503", FailedAt: time.Now().UTC()},
		}))

		competitors, err = st.ListCompetitorDomains(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, competitors, 2)
		assert.Equal(t, "rival.com", competitors[0].Domain)
		assert.True(t, competitors[0].IsAutoDiscovered)
		assert.InDelta(t, 117.5, competitors[0].RelevanceScore, 1e-9)
		assert.False(t, competitors[1].IsAutoDiscovered)

		opportunities, err := st.ListOpportunities(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, opportunities, 2)
		assert.Equal(t, "running shoes", opportunities[0].Keyword)
		assert.Nil(t, opportunities[0].TargetPosition)
		assert.Equal(t, 8, *opportunities[1].TargetPosition)
		assert.Equal(t, model.OpportunityLowPosition, opportunities[1].Type)

		unresolved, err := st.ListUnresolvedKeywords(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, unresolved, 1)
		assert.Equal(t, 3, unresolved[0].Attempts)

		// Saving again replaces the set
		require.NoError(t, st.SaveCompetitorDomains(ctx, "a1", []model.CompetitorDomain{{Domain: "solo.com"}}))
		competitors, err = st.ListCompetitorDomains(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, competitors, 1)

		assert.ErrorIs(t, st.SaveOpportunities(ctx, "missing", nil), ErrNotFound)
	})
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	createPending(t, st, "a1")
	require.NoError(t, st.Close())

	reopened, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck
	require.NoError(t, reopened.Migrate(ctx))

	got, err := reopened.GetAnalysis(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "shop.example", got.TargetDomain)
}
