package handler

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type structureService interface {
	List(ctx context.Context, f model.ExamStructureFilter) ([]model.ExamStructure, *response.Pagination, error)
	GetByID(ctx context.Context, id int) (*model.ExamStructure, error)
	Create(ctx context.Context, req model.ExamStructureRequest) (*model.ExamStructure, error)
	Update(ctx context.Context, id int, req model.ExamStructureRequest) (*model.ExamStructure, error)
	Delete(ctx context.Context, id int) error
	Restore(ctx context.Context, id int) error
	Preview(ctx context.Context, id int) (*model.StructurePreview, error)
}

type scheduledExamService interface {
	List(ctx context.Context, f model.ScheduledExamFilter) ([]model.ScheduledExam, *response.Pagination, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error)
	Create(ctx context.Context, req model.ScheduledExamRequest, createdBy int) (*model.ScheduledExam, error)
	Update(ctx context.Context, id uuid.UUID, req model.ScheduledExamRequest) (*model.ScheduledExam, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	GeneratePaper(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error)
	Publish(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error)
	Cancel(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error)
}

type attemptReviewService interface {
	ListByExam(ctx context.Context, examID uuid.UUID, f model.AttemptFilter) ([]model.ExamAttempt, *response.Pagination, error)
	Details(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetails, error)
	Reset(ctx context.Context, attemptID uuid.UUID) error
	ExportResults(ctx context.Context, examID uuid.UUID) (string, *bytes.Buffer, error)
}

// ExamHandler handles exam structures, scheduled exams and attempt review.
type ExamHandler struct {
	structureService structureService
	examService      scheduledExamService
	attemptService   attemptReviewService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(structureService structureService, examService scheduledExamService, attemptService attemptReviewService) *ExamHandler {
	return &ExamHandler{
		structureService: structureService,
		examService:      examService,
		attemptService:   attemptService,
	}
}

// ─── Exam structures ───────────────────────────────────────────────────

// ListStructures godoc
// GET /api/v1/admin/exam-structures?class_level_id=&subject_id=
func (h *ExamHandler) ListStructures(c *gin.Context) {
	var f model.ExamStructureFilter
	if !bindQuery(c, &f) {
		return
	}
	structures, pagination, err := h.structureService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exam_structures": structures}, pagination)
}

// GetStructure godoc
// GET /api/v1/admin/exam-structures/:id
func (h *ExamHandler) GetStructure(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	structure, err := h.structureService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam_structure": structure})
}

// CreateStructure godoc
// POST /api/v1/admin/exam-structures
func (h *ExamHandler) CreateStructure(c *gin.Context) {
	var req model.ExamStructureRequest
	if !bindJSON(c, &req) {
		return
	}
	structure, err := h.structureService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam_structure": structure})
}

// UpdateStructure godoc
// PUT /api/v1/admin/exam-structures/:id
// Sections are replaced as a whole.
func (h *ExamHandler) UpdateStructure(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req model.ExamStructureRequest
	if !bindJSON(c, &req) {
		return
	}
	structure, err := h.structureService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam_structure": structure})
}

// DeleteStructure godoc
// DELETE /api/v1/admin/exam-structures/:id
func (h *ExamHandler) DeleteStructure(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.structureService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "exam structure deactivated"})
}

// RestoreStructure godoc
// POST /api/v1/admin/exam-structures/:id/restore
func (h *ExamHandler) RestoreStructure(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.structureService.Restore(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "exam structure restored"})
}

// PreviewStructure godoc
// GET /api/v1/admin/exam-structures/:id/preview
// Reports how many active questions can fill each section.
func (h *ExamHandler) PreviewStructure(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	preview, err := h.structureService.Preview(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"preview": preview})
}

// ─── Scheduled exams ───────────────────────────────────────────────────

// ListExams godoc
// GET /api/v1/admin/exams?exam_status=&class_level_id=&subject_id=&school_id=&from=&to=
func (h *ExamHandler) ListExams(c *gin.Context) {
	var f model.ScheduledExamFilter
	if !bindQuery(c, &f) {
		return
	}
	exams, pagination, err := h.examService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	exam, err := h.examService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates a draft exam from a structure.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	var req model.ScheduledExamRequest
	if !bindJSON(c, &req) {
		return
	}
	exam, err := h.examService.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/admin/exams/:id
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req model.ScheduledExamRequest
	if !bindJSON(c, &req) {
		return
	}
	exam, err := h.examService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/admin/exams/:id
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.examService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "exam deactivated"})
}

// RestoreExam godoc
// POST /api/v1/admin/exams/:id/restore
func (h *ExamHandler) RestoreExam(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.examService.Restore(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "exam restored"})
}

// GeneratePaper godoc
// POST /api/v1/admin/exams/:id/generate
// Picks questions for every section and freezes them into the paper.
func (h *ExamHandler) GeneratePaper(c *gin.Context) {
	h.transition(c, h.examService.GeneratePaper)
}

// PublishExam godoc
// POST /api/v1/admin/exams/:id/publish
// Moves a draft to scheduled and warms the paper cache.
func (h *ExamHandler) PublishExam(c *gin.Context) {
	h.transition(c, h.examService.Publish)
}

// CancelExam godoc
// POST /api/v1/admin/exams/:id/cancel
func (h *ExamHandler) CancelExam(c *gin.Context) {
	h.transition(c, h.examService.Cancel)
}

func (h *ExamHandler) transition(c *gin.Context, op func(context.Context, uuid.UUID) (*model.ScheduledExam, error)) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	exam, err := op(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ─── Attempts ──────────────────────────────────────────────────────────

// ListAttempts godoc
// GET /api/v1/admin/exams/:id/attempts?attempt_status=&search=
func (h *ExamHandler) ListAttempts(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var f model.AttemptFilter
	if !bindQuery(c, &f) {
		return
	}
	attempts, pagination, err := h.attemptService.ListByExam(c.Request.Context(), id, f)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, pagination)
}

// ExportResults godoc
// GET /api/v1/admin/exams/:id/results.xlsx
func (h *ExamHandler) ExportResults(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	name, buf, err := h.attemptService.ExportResults(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GetAttempt godoc
// GET /api/v1/admin/attempts/:id
// Returns the attempt with every question, the student's answer and the key.
func (h *ExamHandler) GetAttempt(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	details, err := h.attemptService.Details(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, details)
}

// ResetAttempt godoc
// POST /api/v1/admin/attempts/:id/reset
// Deactivates the attempt so the student can start over.
func (h *ExamHandler) ResetAttempt(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.attemptService.Reset(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "attempt reset"})
}
