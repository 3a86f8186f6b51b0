package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type questionService interface {
	List(ctx context.Context, f model.QuestionFilter) ([]model.Question, *response.Pagination, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	Create(ctx context.Context, req model.QuestionRequest, createdBy int) (*model.Question, error)
	Update(ctx context.Context, id uuid.UUID, req model.QuestionRequest) (*model.Question, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
	BulkCreate(ctx context.Context, reqs []model.QuestionRequest, createdBy int) (int64, error)
	AssignToBank(ctx context.Context, ids []uuid.UUID, qbankID *uuid.UUID) (*model.AssignQuestionsResult, error)
}

type questionBankService interface {
	List(ctx context.Context, f model.QuestionBankFilter) ([]model.QuestionBank, *response.Pagination, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error)
	Create(ctx context.Context, req model.QuestionBankRequest, authorID int) (*model.QuestionBank, error)
	Update(ctx context.Context, id uuid.UUID, req model.QuestionBankRequest) (*model.QuestionBank, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) error
}

// QuestionHandler handles question and question bank management endpoints.
type QuestionHandler struct {
	questionService questionService
	bankService     questionBankService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService questionService, bankService questionBankService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService, bankService: bankService}
}

// ListQuestions godoc
// GET /api/v1/admin/questions?subject_id=&chapter_id=&qbank_id=&question_type=&difficulty=&source=&search=&status=
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	var f model.QuestionFilter
	if !bindQuery(c, &f) {
		return
	}
	questions, pagination, err := h.questionService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions}, pagination)
}

// GetQuestion godoc
// GET /api/v1/admin/questions/:id
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	q, err := h.questionService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// CreateQuestion godoc
// POST /api/v1/admin/questions
// The answer key is checked against the question type before insert.
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	var req model.QuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.questionService.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// BulkCreateQuestions godoc
// POST /api/v1/admin/questions/bulk
// Inserts all questions or none.
func (h *QuestionHandler) BulkCreateQuestions(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	var req model.BulkQuestionsRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.questionService.BulkCreate(c.Request.Context(), req.Questions, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"created": n})
}

// UpdateQuestion godoc
// PUT /api/v1/admin/questions/:id
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req model.QuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.questionService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:id
// Deactivates the question. Papers already generated keep it.
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.questionService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "question deactivated"})
}

// RestoreQuestion godoc
// POST /api/v1/admin/questions/:id/restore
func (h *QuestionHandler) RestoreQuestion(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.questionService.Restore(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "question restored"})
}

// AssignQuestions godoc
// POST /api/v1/admin/questions/assign-bank
// A null qbank_id removes the questions from their bank. Questions of another
// subject than the bank are counted as skipped.
func (h *QuestionHandler) AssignQuestions(c *gin.Context) {
	var req model.AssignQuestionsRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.questionService.AssignToBank(c.Request.Context(), req.QuestionIDs, req.QBankID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// ListBanks godoc
// GET /api/v1/admin/qbanks?subject_id=&author_id=
func (h *QuestionHandler) ListBanks(c *gin.Context) {
	var f model.QuestionBankFilter
	if !bindQuery(c, &f) {
		return
	}
	banks, pagination, err := h.bankService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"qbanks": banks}, pagination)
}

// GetBank godoc
// GET /api/v1/admin/qbanks/:id
func (h *QuestionHandler) GetBank(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	bank, err := h.bankService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"qbank": bank})
}

// CreateBank godoc
// POST /api/v1/admin/qbanks
func (h *QuestionHandler) CreateBank(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	var req model.QuestionBankRequest
	if !bindJSON(c, &req) {
		return
	}
	bank, err := h.bankService.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"qbank": bank})
}

// UpdateBank godoc
// PUT /api/v1/admin/qbanks/:id
func (h *QuestionHandler) UpdateBank(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req model.QuestionBankRequest
	if !bindJSON(c, &req) {
		return
	}
	bank, err := h.bankService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"qbank": bank})
}

// DeleteBank godoc
// DELETE /api/v1/admin/qbanks/:id
func (h *QuestionHandler) DeleteBank(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.bankService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "question bank deactivated"})
}

// RestoreBank godoc
// POST /api/v1/admin/qbanks/:id/restore
func (h *QuestionHandler) RestoreBank(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.bankService.Restore(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "question bank restored"})
}
