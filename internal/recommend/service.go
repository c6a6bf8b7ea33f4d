package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"subsidy-match/backend/internal/scoring"
)

// perCategoryLimit caps each bucket returned to callers.
const perCategoryLimit = 5

// Source supplies subsidies already normalized into the unified record shape.
type Source interface {
	Subsidies(ctx context.Context) ([]scoring.SubsidyRecord, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) ([]scoring.SubsidyRecord, error)

// Subsidies implements Source.
func (f SourceFunc) Subsidies(ctx context.Context) ([]scoring.SubsidyRecord, error) {
	return f(ctx)
}

// Recommendations groups the best-scored subsidies per category.
type Recommendations struct {
	QuickWins        []scoring.RecommendationScore `json:"quick_wins"`
	HighValue        []scoring.RecommendationScore `json:"high_value"`
	ExpiringSoon     []scoring.RecommendationScore `json:"expiring_soon"`
	NewOpportunities []scoring.RecommendationScore `json:"new_opportunities"`
	Popular          []scoring.RecommendationScore `json:"popular"`
	Scored           int                           `json:"scored"`
	Skipped          int                           `json:"skipped"`
	SourceFailed     bool                          `json:"source_failed,omitempty"`
}

// Empty returns a result with every bucket set to an empty, non-nil slice.
func Empty() Recommendations {
	return Recommendations{
		QuickWins:        []scoring.RecommendationScore{},
		HighValue:        []scoring.RecommendationScore{},
		ExpiringSoon:     []scoring.RecommendationScore{},
		NewOpportunities: []scoring.RecommendationScore{},
		Popular:          []scoring.RecommendationScore{},
	}
}

// Total returns the number of recommendations across all buckets.
func (r Recommendations) Total() int {
	return len(r.QuickWins) + len(r.HighValue) + len(r.ExpiringSoon) + len(r.NewOpportunities) + len(r.Popular)
}

// Service scores every subsidy from a Source for one farm.
type Service struct {
	source Source
	scorer *scoring.Scorer
}

// NewService wires a subsidy source to a scorer.
func NewService(source Source, scorer *scoring.Scorer) *Service {
	if scorer == nil {
		scorer = scoring.NewScorer(nil)
	}
	return &Service{source: source, scorer: scorer}
}

// GenerateRecommendations never fails: an upstream error yields empty buckets, and a record
// that cannot be scored is skipped and counted without aborting the batch.
func (s *Service) GenerateRecommendations(ctx context.Context, farm scoring.FarmProfile) Recommendations {
	result := Empty()
	if s == nil || s.source == nil {
		logrus.Warn("recommendations requested without a subsidy source")
		result.SourceFailed = true
		return result
	}

	subsidies, err := s.source.Subsidies(ctx)
	if err != nil {
		logrus.WithError(err).WithField("farm_id", farm.ID).Error("load subsidies for recommendations")
		result.SourceFailed = true
		return result
	}

	buckets := make(map[scoring.Category][]scoring.RecommendationScore)
	for _, subsidy := range subsidies {
		score, err := s.scoreOne(farm, subsidy)
		if err != nil {
			result.Skipped++
			logrus.WithError(err).WithFields(logrus.Fields{
				"farm_id":    farm.ID,
				"subsidy_id": subsidy.ID,
			}).Warn("skipping subsidy")
			continue
		}
		result.Scored++
		buckets[score.Category] = append(buckets[score.Category], score)
	}

	result.QuickWins = topScores(buckets[scoring.CategoryQuickWin])
	result.HighValue = topScores(buckets[scoring.CategoryHighValue])
	result.ExpiringSoon = topScores(buckets[scoring.CategoryExpiringSoon])
	result.NewOpportunities = topScores(buckets[scoring.CategoryNewOpportunity])
	result.Popular = topScores(buckets[scoring.CategoryPopular])

	logrus.WithFields(logrus.Fields{
		"farm_id":   farm.ID,
		"subsidies": len(subsidies),
		"scored":    result.Scored,
		"skipped":   result.Skipped,
	}).Info("recommendations generated")
	return result
}

func (s *Service) scoreOne(farm scoring.FarmProfile, subsidy scoring.SubsidyRecord) (score scoring.RecommendationScore, err error) {
	if err := subsidy.Validate(); err != nil {
		return scoring.RecommendationScore{}, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("score subsidy %s: %v", subsidy.ID, r)
		}
	}()
	return s.scorer.CalculateRecommendationScore(farm, subsidy), nil
}

func topScores(in []scoring.RecommendationScore) []scoring.RecommendationScore {
	if len(in) == 0 {
		return []scoring.RecommendationScore{}
	}
	sorted := append([]scoring.RecommendationScore(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > perCategoryLimit {
		sorted = sorted[:perCategoryLimit]
	}
	return sorted
}
