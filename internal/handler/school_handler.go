package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type schoolService interface {
	List(ctx context.Context, q model.ListQuery) ([]model.School, *response.Pagination, error)
	GetByID(ctx context.Context, id int) (*model.School, error)
	Create(ctx context.Context, req model.SchoolRequest) (*model.School, error)
	Update(ctx context.Context, id int, req model.SchoolRequest) (*model.School, error)
	Delete(ctx context.Context, id int) error
	Restore(ctx context.Context, id int) error
}

// SchoolHandler handles admin-facing school management (CRUD).
type SchoolHandler struct {
	schoolService schoolService
}

// NewSchoolHandler creates a new SchoolHandler.
func NewSchoolHandler(schoolService schoolService) *SchoolHandler {
	return &SchoolHandler{schoolService: schoolService}
}

// ListSchools godoc
// GET /api/v1/admin/schools?status=&search=&page=&per_page=
func (h *SchoolHandler) ListSchools(c *gin.Context) {
	var q model.ListQuery
	if !bindQuery(c, &q) {
		return
	}
	schools, pagination, err := h.schoolService.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"schools": schools}, pagination)
}

// GetSchool godoc
// GET /api/v1/admin/schools/:id
func (h *SchoolHandler) GetSchool(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	school, err := h.schoolService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"school": school})
}

// CreateSchool godoc
// POST /api/v1/admin/schools
func (h *SchoolHandler) CreateSchool(c *gin.Context) {
	var req model.SchoolRequest
	if !bindJSON(c, &req) {
		return
	}
	school, err := h.schoolService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"school": school})
}

// UpdateSchool godoc
// PUT /api/v1/admin/schools/:id
func (h *SchoolHandler) UpdateSchool(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req model.SchoolRequest
	if !bindJSON(c, &req) {
		return
	}
	school, err := h.schoolService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"school": school})
}

// DeleteSchool godoc
// DELETE /api/v1/admin/schools/:id
// Deactivates the school. The row stays readable by id.
func (h *SchoolHandler) DeleteSchool(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.schoolService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "school deactivated"})
}

// RestoreSchool godoc
// POST /api/v1/admin/schools/:id/restore
func (h *SchoolHandler) RestoreSchool(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.schoolService.Restore(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "school restored"})
}
