// Export HTTP handlers.
//
// This file serves single-question XLSX workbooks:
//   - GET /surveys/{id}/export/{question}
//
// The workbook is built in memory and streamed with a content-disposition
// filename derived from the survey and question identity.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/surveyhive/go-survey-backend/internal/services"
)

// ExportService defines the workbook rendering operation consumed by HTTP
// handlers.
type ExportService interface {
	// ExportQuestion aggregates one question and renders it as XLSX.
	ExportQuestion(ctx context.Context, surveyID, candidate string) (*services.ExportResult, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportQuestion godoc
// @ID          exportQuestion
// @Summary     Export one question as XLSX
// @Description Aggregates a single question and returns a styled XLSX workbook. The question may be addressed by durable id, ordinal, or content hash.
// @Tags        Export
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
//
// @Param       id        path  string  true  "Survey ID (UUID)" format(uuid)
// @Param       question  path  string  true  "Question identity (durable id, ordinal, or content hash)"
//
// @Success     200  {file}    file
// @Failure     404  {object}  handlers.ErrorResponse "Survey or question not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /surveys/{id}/export/{question} [get]
func (h *Handlers) ExportQuestion(c *gin.Context) {
	result, err := h.exportSvc.ExportQuestion(c.Request.Context(), c.Param("id"), c.Param("question"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSurveyNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "survey not found")
		case errors.Is(err, services.ErrQuestionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "question not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, xlsxContentType, result.Data)
}
