package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/service"
)

type extractionService interface {
	Create(ctx context.Context, req model.CreateExtractionRequest, fileName string, data []byte, createdBy int) (*model.ExtractionJob, error)
	List(ctx context.Context, f model.ExtractionFilter) ([]model.ExtractionJob, *response.Pagination, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExtractionJob, error)
	Import(ctx context.Context, id uuid.UUID, req model.ImportExtractionRequest, createdBy int) (int, error)
	Retry(ctx context.Context, id uuid.UUID) (*model.ExtractionJob, error)
}

// ExtractionHandler handles AI question extraction jobs.
type ExtractionHandler struct {
	extractionService extractionService
	maxPDFBytes       int64
}

// NewExtractionHandler creates a new ExtractionHandler.
func NewExtractionHandler(extractionService extractionService, maxPDFBytes int64) *ExtractionHandler {
	return &ExtractionHandler{extractionService: extractionService, maxPDFBytes: maxPDFBytes}
}

// CreateExtraction godoc
// POST /api/v1/admin/extractions
// Multipart form: file (PDF), subject_id, chapter_id, qbank_id, provider,
// question_types, max_questions, language. The job is processed in the background.
func (h *ExtractionHandler) CreateExtraction(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	var req model.CreateExtractionRequest
	if !bindForm(c, &req) {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	if header.Size > h.maxPDFBytes {
		fail(c, fmt.Errorf("%w: %d bytes (max: %d)", service.ErrFileTooLarge, header.Size, h.maxPDFBytes))
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxPDFBytes+1))
	if err != nil {
		fail(c, fmt.Errorf("read upload: %w", err))
		return
	}

	job, err := h.extractionService.Create(c.Request.Context(), req, header.Filename, data, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"extraction": job})
}

// ListExtractions godoc
// GET /api/v1/admin/extractions?job_status=&subject_id=
func (h *ExtractionHandler) ListExtractions(c *gin.Context) {
	var f model.ExtractionFilter
	if !bindQuery(c, &f) {
		return
	}
	jobs, pagination, err := h.extractionService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"extractions": jobs}, pagination)
}

// GetExtraction godoc
// GET /api/v1/admin/extractions/:id
// Includes the validated questions and per-item issues once completed.
func (h *ExtractionHandler) GetExtraction(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	job, err := h.extractionService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"extraction": job})
}

// ImportExtraction godoc
// POST /api/v1/admin/extractions/:id/import
// Body: {"indices":[0,2]}. An empty body imports every extracted question.
func (h *ExtractionHandler) ImportExtraction(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req model.ImportExtractionRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	n, err := h.extractionService.Import(c.Request.Context(), id, req, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"imported": n})
}

// RetryExtraction godoc
// POST /api/v1/admin/extractions/:id/retry
func (h *ExtractionHandler) RetryExtraction(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	job, err := h.extractionService.Retry(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"extraction": job})
}
