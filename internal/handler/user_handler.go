package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/middleware"
	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type userService interface {
	List(ctx context.Context, f model.UserFilter) ([]model.User, *response.Pagination, error)
	GetByID(ctx context.Context, id int) (*model.User, error)
	Create(ctx context.Context, req model.CreateUserRequest) (*model.User, error)
	Update(ctx context.Context, id int, req model.UpdateUserRequest) (*model.User, error)
	Delete(ctx context.Context, id int) error
	Restore(ctx context.Context, id int) error
	ResetPassword(ctx context.Context, id int, password string) error
}

type sessionResetter interface {
	ResetStudentSession(ctx context.Context, studentID int) error
}

// UserHandler handles admin-facing management of admin and student accounts.
type UserHandler struct {
	userService userService
	sessions    sessionResetter
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService userService, sessions sessionResetter) *UserHandler {
	return &UserHandler{userService: userService, sessions: sessions}
}

// ListUsers godoc
// GET /api/v1/admin/users?kind=&role_id=&school_id=&class_level_id=&search=&status=
func (h *UserHandler) ListUsers(c *gin.Context) {
	var f model.UserFilter
	if !bindQuery(c, &f) {
		return
	}
	users, pagination, err := h.userService.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"users": users}, pagination)
}

// GetUser godoc
// GET /api/v1/admin/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// CreateUser godoc
// POST /api/v1/admin/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"user": user})
}

// UpdateUser godoc
// PUT /api/v1/admin/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req model.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// DeleteUser godoc
// DELETE /api/v1/admin/users/:id
// Deactivates the account. Deactivated users cannot log in.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if claims := middleware.GetClaims(c); claims != nil && claims.UserID == id {
		response.Fail(c, http.StatusForbidden, response.ErrActionForbidden)
		return
	}
	if err := h.userService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "user deactivated"})
}

// RestoreUser godoc
// POST /api/v1/admin/users/:id/restore
func (h *UserHandler) RestoreUser(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.userService.Restore(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "user restored"})
}

// ResetPassword godoc
// PUT /api/v1/admin/users/:id/password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req model.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.userService.ResetPassword(c.Request.Context(), id, req.Password); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "password reset"})
}

// ResetSession godoc
// POST /api/v1/admin/users/:id/reset-session
// Lets a student who lost their device log in again.
func (h *UserHandler) ResetSession(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.sessions.ResetStudentSession(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "session reset"})
}
