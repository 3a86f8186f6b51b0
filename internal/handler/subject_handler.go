package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type subjectService interface {
	List(ctx context.Context, f model.SubjectFilter) ([]model.Subject, *response.Pagination, error)
	GetByID(ctx context.Context, id int) (*model.Subject, error)
	Create(ctx context.Context, req model.SubjectRequest) (*model.Subject, error)
	Update(ctx context.Context, id int, req model.SubjectRequest) (*model.Subject, error)
	Delete(ctx context.Context, id int) error
	Restore(ctx context.Context, id int) error
}

type chapterService interface {
	List(ctx context.Context, f model.ChapterFilter) ([]model.Chapter, *response.Pagination, error)
	GetByID(ctx context.Context, id int) (*model.Chapter, error)
	Create(ctx context.Context, req model.ChapterRequest) (*model.Chapter, error)
	Update(ctx context.Context, id int, req model.ChapterRequest) (*model.Chapter, error)
	Delete(ctx context.Context, id int) error
	Restore(ctx context.Context, id int) error
}

// SubjectHandler handles subjects and their chapters.
type SubjectHandler struct {
	subjectService subjectService
	chapterService chapterService
}

// NewSubjectHandler creates a new SubjectHandler.
func NewSubjectHandler(subjectService subjectService, chapterService chapterService) *SubjectHandler {
	return &SubjectHandler{subjectService: subjectService, chapterService: chapterService}
}

// ListSubjects godoc
// GET /api/v1/admin/subjects?class_level_id=
func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	var f model.SubjectFilter
	if !bindQuery(c, &f) {
		return
	}
	subjects, pagination, err := h.subjectService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"subjects": subjects}, pagination)
}

// GetSubject godoc
// GET /api/v1/admin/subjects/:id
func (h *SubjectHandler) GetSubject(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	subject, err := h.subjectService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subject": subject})
}

// CreateSubject godoc
// POST /api/v1/admin/subjects
// Fails with INVALID_PARENT when the class level is missing or inactive.
func (h *SubjectHandler) CreateSubject(c *gin.Context) {
	var req model.SubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	subject, err := h.subjectService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"subject": subject})
}

// UpdateSubject godoc
// PUT /api/v1/admin/subjects/:id
func (h *SubjectHandler) UpdateSubject(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req model.SubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	subject, err := h.subjectService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subject": subject})
}

// DeleteSubject godoc
// DELETE /api/v1/admin/subjects/:id
func (h *SubjectHandler) DeleteSubject(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.subjectService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "subject deactivated"})
}

// RestoreSubject godoc
// POST /api/v1/admin/subjects/:id/restore
func (h *SubjectHandler) RestoreSubject(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.subjectService.Restore(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "subject restored"})
}

// ListChapters godoc
// GET /api/v1/admin/chapters?subject_id=
func (h *SubjectHandler) ListChapters(c *gin.Context) {
	var f model.ChapterFilter
	if !bindQuery(c, &f) {
		return
	}
	chapters, pagination, err := h.chapterService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"chapters": chapters}, pagination)
}

// GetChapter godoc
// GET /api/v1/admin/chapters/:id
func (h *SubjectHandler) GetChapter(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	chapter, err := h.chapterService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"chapter": chapter})
}

// CreateChapter godoc
// POST /api/v1/admin/chapters
func (h *SubjectHandler) CreateChapter(c *gin.Context) {
	var req model.ChapterRequest
	if !bindJSON(c, &req) {
		return
	}
	chapter, err := h.chapterService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"chapter": chapter})
}

// UpdateChapter godoc
// PUT /api/v1/admin/chapters/:id
func (h *SubjectHandler) UpdateChapter(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req model.ChapterRequest
	if !bindJSON(c, &req) {
		return
	}
	chapter, err := h.chapterService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"chapter": chapter})
}

// DeleteChapter godoc
// DELETE /api/v1/admin/chapters/:id
func (h *SubjectHandler) DeleteChapter(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.chapterService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "chapter deactivated"})
}

// RestoreChapter godoc
// POST /api/v1/admin/chapters/:id/restore
func (h *SubjectHandler) RestoreChapter(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.chapterService.Restore(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "chapter restored"})
}
