package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type classLevelService interface {
	List(ctx context.Context, q model.ListQuery) ([]model.ClassLevel, *response.Pagination, error)
	GetByID(ctx context.Context, id int) (*model.ClassLevel, error)
	Create(ctx context.Context, req model.ClassLevelRequest) (*model.ClassLevel, error)
	Update(ctx context.Context, id int, req model.ClassLevelRequest) (*model.ClassLevel, error)
	Delete(ctx context.Context, id int) error
	Restore(ctx context.Context, id int) error
}

// ClassLevelHandler handles admin-facing class level management (CRUD).
type ClassLevelHandler struct {
	levelService classLevelService
}

// NewClassLevelHandler creates a new ClassLevelHandler.
func NewClassLevelHandler(levelService classLevelService) *ClassLevelHandler {
	return &ClassLevelHandler{levelService: levelService}
}

// ListClassLevels godoc
// GET /api/v1/admin/class-levels
// Lists class levels ordered by level_order.
func (h *ClassLevelHandler) ListClassLevels(c *gin.Context) {
	var q model.ListQuery
	if !bindQuery(c, &q) {
		return
	}
	levels, pagination, err := h.levelService.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"class_levels": levels}, pagination)
}

// GetClassLevel godoc
// GET /api/v1/admin/class-levels/:id
func (h *ClassLevelHandler) GetClassLevel(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	level, err := h.levelService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"class_level": level})
}

// CreateClassLevel godoc
// POST /api/v1/admin/class-levels
func (h *ClassLevelHandler) CreateClassLevel(c *gin.Context) {
	var req model.ClassLevelRequest
	if !bindJSON(c, &req) {
		return
	}
	level, err := h.levelService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"class_level": level})
}

// UpdateClassLevel godoc
// PUT /api/v1/admin/class-levels/:id
func (h *ClassLevelHandler) UpdateClassLevel(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req model.ClassLevelRequest
	if !bindJSON(c, &req) {
		return
	}
	level, err := h.levelService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"class_level": level})
}

// DeleteClassLevel godoc
// DELETE /api/v1/admin/class-levels/:id
func (h *ClassLevelHandler) DeleteClassLevel(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.levelService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "class level deactivated"})
}

// RestoreClassLevel godoc
// POST /api/v1/admin/class-levels/:id/restore
func (h *ClassLevelHandler) RestoreClassLevel(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.levelService.Restore(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "class level restored"})
}
