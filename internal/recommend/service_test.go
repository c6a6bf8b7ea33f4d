package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subsidy-match/backend/internal/scoring"
)

var fixedNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func testScorer() *scoring.Scorer {
	return scoring.NewScorer(nil, scoring.WithClock(func() time.Time { return fixedNow }))
}

func staticSource(records []scoring.SubsidyRecord) Source {
	return SourceFunc(func(context.Context) ([]scoring.SubsidyRecord, error) {
		return records, nil
	})
}

func TestGenerateRecommendationsSourceFailure(t *testing.T) {
	failing := SourceFunc(func(context.Context) ([]scoring.SubsidyRecord, error) {
		return nil, errors.New("upstream unavailable")
	})
	svc := NewService(failing, testScorer())

	var result Recommendations
	require.NotPanics(t, func() {
		result = svc.GenerateRecommendations(context.Background(), scoring.FarmProfile{ID: "farm"})
	})
	assert.True(t, result.SourceFailed)
	assert.NotNil(t, result.QuickWins)
	assert.Empty(t, result.QuickWins)
	assert.Empty(t, result.HighValue)
	assert.Empty(t, result.ExpiringSoon)
	assert.Empty(t, result.NewOpportunities)
	assert.Empty(t, result.Popular)
}

func TestGenerateRecommendationsNilSource(t *testing.T) {
	result := NewService(nil, nil).GenerateRecommendations(context.Background(), scoring.FarmProfile{})
	assert.True(t, result.SourceFailed)
	assert.Equal(t, 0, result.Total())
}

func TestGenerateRecommendationsBucketsSortedAndCapped(t *testing.T) {
	farm := scoring.FarmProfile{ID: "farm", Department: "Gers", LandUseTypes: []string{"céréales"}, TotalHectares: 40}
	var records []scoring.SubsidyRecord
	for i := 0; i < 8; i++ {
		record := scoring.SubsidyRecord{
			ID:    fmt.Sprintf("quick-%d", i),
			Title: "Démarche simple en ligne",
		}
		if i%2 == 0 {
			record.Regions = []string{"Gers"}
		}
		if i%3 == 0 {
			record.Sectors = []string{"Céréales"}
		}
		records = append(records, record)
	}
	for i := 0; i < 3; i++ {
		days := 5 + i
		records = append(records, scoring.SubsidyRecord{
			ID:       fmt.Sprintf("urgent-%d", i),
			Title:    "Aide aux agriculteurs",
			Regions:  []string{"Occitanie"},
			Deadline: scoring.Deadline{DaysRemaining: &days},
		})
	}
	records = append(records, scoring.SubsidyRecord{ID: "plain", Title: "Tourisme"})

	result := NewService(staticSource(records), testScorer()).GenerateRecommendations(context.Background(), farm)

	assert.Equal(t, len(records), result.Scored)
	assert.Equal(t, 0, result.Skipped)
	assert.Len(t, result.QuickWins, 5)
	assert.Len(t, result.ExpiringSoon, 3)
	assert.Len(t, result.Popular, 1)
	assert.Empty(t, result.HighValue)

	for _, bucket := range [][]scoring.RecommendationScore{result.QuickWins, result.ExpiringSoon, result.Popular} {
		assert.LessOrEqual(t, len(bucket), 5)
		for i := 1; i < len(bucket); i++ {
			assert.GreaterOrEqual(t, bucket[i-1].Score, bucket[i].Score)
		}
	}
	for _, rec := range result.QuickWins {
		assert.Equal(t, scoring.CategoryQuickWin, rec.Category)
	}
	// The best quick win is the one matching both geography and sector.
	assert.Equal(t, "quick-0", result.QuickWins[0].SubsidyID)
}

func TestGenerateRecommendationsSkipsInvalidRecords(t *testing.T) {
	records := []scoring.SubsidyRecord{
		{ID: "", Title: "missing id"},
		{ID: "bad-amount", Title: "Aide", Amount: scoring.Amount{Min: 100, Max: 10}},
		{ID: "good", Title: "Aide simple"},
	}
	result := NewService(staticSource(records), testScorer()).GenerateRecommendations(context.Background(), scoring.FarmProfile{})

	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Scored)
	require.Len(t, result.QuickWins, 1)
	assert.Equal(t, "good", result.QuickWins[0].SubsidyID)
}

func TestTopScoresStableOnTies(t *testing.T) {
	in := []scoring.RecommendationScore{
		{SubsidyID: "a", Score: 40},
		{SubsidyID: "b", Score: 60},
		{SubsidyID: "c", Score: 40},
	}
	out := topScores(in)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{out[0].SubsidyID, out[1].SubsidyID, out[2].SubsidyID})
	assert.Equal(t, "a", in[0].SubsidyID, "input must not be reordered")
}
