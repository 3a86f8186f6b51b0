package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type roleService interface {
	ListRoles(ctx context.Context) ([]model.RoleWithPermissions, error)
	GetRoleByID(ctx context.Context, id int) (*model.RoleWithPermissions, error)
	CreateRole(ctx context.Context, req model.RoleRequest) (*model.RoleWithPermissions, error)
	UpdateRole(ctx context.Context, id int, req model.RoleRequest) (*model.RoleWithPermissions, error)
	DeleteRole(ctx context.Context, id int) error
	GetAllPermissions() []string
}

// RoleHandler handles RBAC role management.
type RoleHandler struct {
	roleService roleService
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(roleService roleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

// ListRoles godoc
// GET /api/v1/admin/roles
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if roles == nil {
		roles = []model.RoleWithPermissions{}
	}
	response.Success(c, http.StatusOK, gin.H{"roles": roles})
}

// ListPermissions godoc
// GET /api/v1/admin/roles/permissions
// Returns the flat code list plus the same codes grouped by resource.
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"permissions": h.roleService.GetAllPermissions(),
		"groups":      model.PermissionGroups(),
	})
}

// GetRole godoc
// GET /api/v1/admin/roles/:id
func (h *RoleHandler) GetRole(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	role, err := h.roleService.GetRoleByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"role": role})
}

// CreateRole godoc
// POST /api/v1/admin/roles
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req model.RoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.roleService.CreateRole(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"role": role})
}

// UpdateRole godoc
// PUT /api/v1/admin/roles/:id
// Tokens issued before the change keep their old permissions until expiry.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req model.RoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.roleService.UpdateRole(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"role": role})
}

// DeleteRole godoc
// DELETE /api/v1/admin/roles/:id
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.roleService.DeleteRole(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "role deleted"})
}
