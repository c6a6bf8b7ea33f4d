package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"subsidy-match/backend/internal/recommend"
	"subsidy-match/backend/internal/scoring"
	"subsidy-match/backend/internal/store"
	"subsidy-match/backend/internal/util"
)

func (s *Server) handleScoreSubsidy(c *gin.Context) {
	farm, ok := s.lookupFarm(c)
	if !ok {
		return
	}
	subsidy, ok := s.lookupSubsidy(c, c.Param("subsidyID"))
	if !ok {
		return
	}
	record := subsidy.Record(s.now())
	if err := record.Validate(); err != nil {
		s.renderError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.JSON(http.StatusOK, s.scorer.CalculateRecommendationScore(farm.Profile(), record))
}

// handleRecommend scores an inline farm profile. The run is stored under the profile ID, which may be empty.
func (s *Server) handleRecommend(c *gin.Context) {
	var profile scoring.FarmProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if profile.TotalHectares < 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("total_hectares must not be negative"))
		return
	}
	c.JSON(http.StatusOK, s.runRecommendations(c.Request.Context(), profile))
}

func (s *Server) handleFarmRecommendations(c *gin.Context) {
	farm, ok := s.lookupFarm(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.runRecommendations(c.Request.Context(), farm.Profile()))
}

func (s *Server) handleListRuns(c *gin.Context) {
	farm, ok := s.lookupFarm(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = defaultRunLimit
	}
	runs, err := s.db.ListRecommendationRuns(farm.ID, limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]RecommendationRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, RunFromModel(run))
	}
	c.JSON(http.StatusOK, RunsResponse{Items: dtos})
}

// runRecommendations generates the buckets for a farm, then stores and broadcasts the run.
// A failure to store the run is logged and does not affect the response.
func (s *Server) runRecommendations(ctx context.Context, farm scoring.FarmProfile) RecommendationsResponse {
	timer := util.StartTimerWith(s.now)
	result := s.recommender.GenerateRecommendations(ctx, farm)
	response := RecommendationsResponse{
		Recommendations:  result,
		ProcessingTimeMs: timer.ElapsedMs(),
	}
	run := runFromResult(farm.ID, result, response.ProcessingTimeMs)
	if err := s.db.SaveRecommendationRun(&run); err != nil {
		logrus.WithError(err).WithField("farm_id", farm.ID).Warn("store recommendation run")
		return response
	}
	response.RunID = run.ID

	dto := RunFromModel(run)
	s.notifier.Broadcast(RecommendationEvent{
		Type:    EventRecommendationsGenerated,
		FarmID:  farm.ID,
		Run:     &dto,
		Message: runMessage(result),
	})
	return response
}

func runFromResult(farmID string, result recommend.Recommendations, elapsedMs int64) store.RecommendationRun {
	return store.RecommendationRun{
		ID:               uuid.NewString(),
		FarmID:           farmID,
		QuickWins:        len(result.QuickWins),
		HighValue:        len(result.HighValue),
		ExpiringSoon:     len(result.ExpiringSoon),
		NewOpportunities: len(result.NewOpportunities),
		Popular:          len(result.Popular),
		Scored:           result.Scored,
		Skipped:          result.Skipped,
		SourceFailed:     result.SourceFailed,
		ProcessingTimeMs: elapsedMs,
	}
}

func runMessage(result recommend.Recommendations) string {
	if result.SourceFailed {
		return "subsidy data unavailable"
	}
	msg := fmt.Sprintf("%d recommendations from %d subsidies", result.Total(), result.Scored)
	if result.Skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", result.Skipped)
	}
	return msg
}
