// Analytics HTTP handlers.
//
// This file exposes the read-side REST endpoints:
//   - GET /surveys/{id}/analytics                 (all question summaries)
//   - GET /surveys/{id}/analytics/{question}      (one question summary)
//   - GET /surveys/{id}/overview                  (participation overview)
//
// Aggregation is recomputed per request from stored responses; there is no
// cache layer, so results always reflect the current definition.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/surveyhive/go-survey-backend/internal/services"
	"github.com/surveyhive/go-survey-backend/internal/utils"
)

// AnalyticsService defines the aggregation operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AnalyticsService interface {
	// Aggregate summarizes every question of the survey.
	Aggregate(ctx context.Context, surveyID string) ([]services.QuestionSummary, error)
	// QuestionAnalytics summarizes one question addressed by any identity.
	QuestionAnalytics(ctx context.Context, surveyID, candidate string) (*services.QuestionSummary, error)
	// Overview reports instance counts and the daily timeline.
	Overview(ctx context.Context, surveyID string) (*services.Overview, error)
}

// ListAnalyticsResponse wraps all question summaries for a survey.
type ListAnalyticsResponse struct {
	SurveyID  string                     `json:"survey_id"`
	Questions []services.QuestionSummary `json:"questions"`
}

// ListAnalytics godoc
// @ID          listAnalytics
// @Summary     Summaries for every question
// @Description Returns the aggregation result for each question of the survey, in page then position order.
// @Tags        Analytics
// @Produce     json
//
// @Param       id  path  string  true  "Survey ID (UUID)" format(uuid)
//
// @Success     200  {object}  handlers.ListAnalyticsResponse
// @Failure     404  {object}  handlers.ErrorResponse "Survey not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /surveys/{id}/analytics [get]
func (h *Handlers) ListAnalytics(c *gin.Context) {
	surveyID := c.Param("id")
	summaries, err := h.analyticsSvc.Aggregate(c.Request.Context(), surveyID)
	if err != nil {
		failAnalytics(c, err)
		return
	}
	ok(c, http.StatusOK, ListAnalyticsResponse{SurveyID: surveyID, Questions: summaries})
}

// QuestionAnalytics godoc
// @ID          questionAnalytics
// @Summary     Summary for one question
// @Description Returns the aggregation result for a single question. The question may be addressed by durable id, ordinal, or content hash.
// @Tags        Analytics
// @Produce     json
//
// @Param       id        path  string  true  "Survey ID (UUID)" format(uuid)
// @Param       question  path  string  true  "Question identity (durable id, ordinal, or content hash)"
//
// @Success     200  {object}  services.QuestionSummary
// @Failure     404  {object}  handlers.ErrorResponse "Survey or question not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /surveys/{id}/analytics/{question} [get]
func (h *Handlers) QuestionAnalytics(c *gin.Context) {
	summary, err := h.analyticsSvc.QuestionAnalytics(c.Request.Context(), c.Param("id"), c.Param("question"))
	if err != nil {
		failAnalytics(c, err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// SurveyOverview godoc
// @ID          surveyOverview
// @Summary     Participation overview
// @Description Returns instance counts per state, the completion rate, and the daily started-instances timeline. The timeline can be truncated with the days query parameter.
// @Tags        Analytics
// @Produce     json
//
// @Param       id    path   string  true   "Survey ID (UUID)" format(uuid)
// @Param       days  query  int     false  "Keep only the most recent N timeline days" minimum(1)
//
// @Success     200  {object}  services.Overview
// @Failure     404  {object}  handlers.ErrorResponse "Survey not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /surveys/{id}/overview [get]
func (h *Handlers) SurveyOverview(c *gin.Context) {
	overview, err := h.analyticsSvc.Overview(c.Request.Context(), c.Param("id"))
	if err != nil {
		failAnalytics(c, err)
		return
	}

	if days := utils.AtoiDefault(c.Query("days"), 0); days > 0 && len(overview.DailyTimeline) > days {
		overview.DailyTimeline = overview.DailyTimeline[len(overview.DailyTimeline)-days:]
	}
	ok(c, http.StatusOK, overview)
}

// failAnalytics maps aggregation errors onto the shared error envelope.
func failAnalytics(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSurveyNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "survey not found")
	case errors.Is(err, services.ErrQuestionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "question not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeAggregateFailed, err.Error())
	}
}
