// Collector HTTP handlers.
//
// This file exposes the respondent-facing REST endpoints:
//   - GET  /surveys/{id}/pages/{page}   (render a page with prior answers)
//   - POST /surveys/{id}/responses      (submit answers, optionally complete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including idempotent replays).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/surveyhive/go-survey-backend/internal/http/middleware"
	"github.com/surveyhive/go-survey-backend/internal/repo"
	"github.com/surveyhive/go-survey-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// CollectorService defines the respondent session operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CollectorService interface {
	// RenderPage assembles one survey page with any stored answers overlaid.
	RenderPage(ctx context.Context, req services.RenderPageRequest) (*services.PagePayload, error)
	// SubmitResponses upserts a batch of answers and optionally completes
	// the instance.
	SubmitResponses(ctx context.Context, req services.SubmitRequest) (*services.InstanceSummary, error)
	// InstanceSummaryByID returns the state of an owned instance, used to
	// serve idempotent replays.
	InstanceSummaryByID(ctx context.Context, instanceID, respondentID string) (*services.InstanceSummary, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for the collector, analytics, and export
// surfaces. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	collectorSvc CollectorService
	analyticsSvc AnalyticsService
	exportSvc    ExportService

	// db is used for idempotency bookkeeping around submissions.
	db *gorm.DB
	// idemTTL bounds how long a stored idempotency key is replayable.
	idemTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(collectorSvc CollectorService, analyticsSvc AnalyticsService, exportSvc ExportService, db *gorm.DB, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{
		collectorSvc: collectorSvc,
		analyticsSvc: analyticsSvc,
		exportSvc:    exportSvc,
		db:           db,
		idemTTL:      idemTTL,
	}
}

// respondentID extracts the authenticated respondent id from Gin context (set
// by upstream middleware). If absent, it falls back to "X-Respondent-ID"
// header (tests use it), and finally to "" meaning anonymous. It never touches
// c.Request if it's nil.
func respondentID(c *gin.Context) string {
	if rid, ok := middleware.RespondentID(c); ok {
		return rid
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Respondent-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// SubmitAnswerDTO is one answer within a submission payload. RawValue accepts
// a string, an array of strings, or an array of row/column pair objects
// depending on the question type.
type SubmitAnswerDTO struct {
	// QuestionIdentity addresses the question by durable id, ordinal, or
	// content hash.
	QuestionIdentity string `json:"question_identity" binding:"required" example:"5f2b1c9e8d3a4f6b7c8d9e0f1a2b3c4d"`
	// TypeTag declares the answer shape (e.g. "multi_choice").
	TypeTag string `json:"type_tag" example:"single_choice"`
	// RawValue is the answer payload in its submitted shape.
	RawValue any `json:"value"`
	// Comment optionally annotates the answer.
	Comment string `json:"comment,omitempty"`
	// Score optionally attaches a numeric score.
	Score *float64 `json:"score,omitempty"`
}

// SubmitRequestDTO is the JSON payload for submitting answers.
type SubmitRequestDTO struct {
	// PageID identifies the page the answers came from; optional.
	PageID string `json:"page_id,omitempty"`
	// Answers is the batch to upsert.
	Answers []SubmitAnswerDTO `json:"answers" binding:"required"`
	// Complete marks the instance finished after the batch is stored.
	Complete bool `json:"complete,omitempty"`
	// Referrer optionally records where the respondent came from.
	Referrer string `json:"referrer,omitempty"`
	// Tags optionally attaches free-form labels to the instance.
	Tags string `json:"tags,omitempty"`
}

//
// Handlers
//

// RenderPage godoc
// @ID          renderPage
// @Summary     Render a survey page
// @Description Returns one page of the survey with question structure, navigation metadata, and the respondent's stored answers overlaid. Pass preview=true to render without creating a session.
// @Tags        Collector
// @Produce     json
//
// @Param       id       path   string  true  "Survey ID (UUID)" format(uuid)
// @Param       page     path   string  true  "Page ID (UUID), or 'first'"
// @Param       preview  query  bool    false "Render without recording a visit"
//
// @Success     200  {object}  services.PagePayload
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Survey or page not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /surveys/{id}/pages/{page} [get]
func (h *Handlers) RenderPage(c *gin.Context) {
	pageID := c.Param("page")
	if pageID == "first" {
		pageID = ""
	}
	req := services.RenderPageRequest{
		SurveyID:     c.Param("id"),
		PageID:       pageID,
		RespondentID: respondentID(c),
		RemoteAddr:   c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		Preview:      c.Query("preview") == "true",
	}

	payload, err := h.collectorSvc.RenderPage(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSurveyNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "survey not found")
		case errors.Is(err, services.ErrPageNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "page not found")
		case errors.Is(err, services.ErrMissingAddress):
			fail(c, http.StatusBadRequest, ErrCodeMissingAddress, "client address required for anonymous sessions")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeRenderFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, payload)
}

// SubmitResponses godoc
// @ID          submitResponses
// @Summary     Submit answers
// @Description Upserts a batch of answers for the respondent's instance. Resubmitting a question replaces its stored answer. Supports Idempotency-Key replay: a repeated key returns the stored instance state with Idempotency-Replayed: true.
// @Tags        Collector
// @Accept      json
// @Produce     json
//
// @Param       id               path    string  true  "Survey ID (UUID)" format(uuid)
// @Param       Idempotency-Key  header  string  false "Client-chosen key for safe retries"
// @Param       body             body    handlers.SubmitRequestDTO  true  "Submission payload"
//
// @Success     200  {object}  services.InstanceSummary
// @Header      200  {string}  Idempotency-Replayed  "true when a stored result was returned"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse "Preview sessions are read-only"
// @Failure     404  {object}  handlers.ErrorResponse "Survey not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /surveys/{id}/responses [post]
func (h *Handlers) SubmitResponses(c *gin.Context) {
	ctx := c.Request.Context()
	surveyID := c.Param("id")
	rid := respondentID(c)

	// Serve a detected replay before touching the body.
	if middleware.IsReplay(c) && rid != "" {
		if key, has := middleware.GetIdempotencyKey(c); has {
			if rec, err := repo.GetIdempotency(ctx, h.db, rid, surveyID, key, time.Now().UTC()); err == nil {
				if summary, err := h.collectorSvc.InstanceSummaryByID(ctx, rec.InstanceID, rid); err == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, rec.Status, summary)
					return
				}
			}
		}
	}

	var dto SubmitRequestDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if len(dto.Answers) == 0 && !dto.Complete {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "answers required")
		return
	}

	req := services.SubmitRequest{
		SurveyID:     surveyID,
		RespondentID: rid,
		RemoteAddr:   c.ClientIP(),
		PageID:       dto.PageID,
		Complete:     dto.Complete,
		UserAgent:    c.Request.UserAgent(),
		Referrer:     dto.Referrer,
		Tags:         dto.Tags,
		Preview:      c.Query("preview") == "true",
	}
	for _, a := range dto.Answers {
		req.Answers = append(req.Answers, services.SubmittedAnswer{
			QuestionIdentity: a.QuestionIdentity,
			TypeTag:          a.TypeTag,
			RawValue:         a.RawValue,
			Comment:          a.Comment,
			Score:            a.Score,
		})
	}

	summary, err := h.collectorSvc.SubmitResponses(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSurveyNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "survey not found")
		case errors.Is(err, services.ErrPreviewReadOnly):
			fail(c, http.StatusForbidden, ErrCodePreviewReadOnly, "preview sessions cannot store answers")
		case errors.Is(err, services.ErrMissingAddress):
			fail(c, http.StatusBadRequest, ErrCodeMissingAddress, "client address required for anonymous sessions")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
		}
		return
	}

	for _, a := range dto.Answers {
		middleware.CountAnswerUpsert(a.TypeTag)
	}
	if dto.Complete {
		middleware.CountCompletion()
	}

	// Record the key so retries replay instead of re-running, best effort.
	if rid != "" {
		if key, has := middleware.GetIdempotencyKey(c); has {
			_, _ = repo.CreateIdempotency(ctx, h.db, rid, surveyID, key, summary.InstanceID, http.StatusOK, h.idemTTL)
		}
	}

	ok(c, http.StatusOK, summary)
}
