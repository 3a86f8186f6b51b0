package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/service"
)

type authService interface {
	Login(ctx context.Context, kind model.UserKind, req model.LoginRequest) (*model.LoginResponse, error)
	Logout(ctx context.Context, claims *service.Claims) error
}

type accountService interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	UpdateOwnProfile(ctx context.Context, id int, req model.SelfProfileRequest) (*model.User, error)
	ChangePassword(ctx context.Context, id int, req model.ChangePasswordRequest) error
}

// AuthHandler handles login, logout and self-service account endpoints.
type AuthHandler struct {
	authService authService
	users       accountService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService authService, users accountService) *AuthHandler {
	return &AuthHandler{authService: authService, users: users}
}

// StudentLogin godoc
// POST /api/v1/auth/student/login
// Rejects the login while another device holds the session.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	h.login(c, model.UserStudent)
}

// AdminLogin godoc
// POST /api/v1/auth/admin/login
// Returns a JWT with the role's permissions embedded.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, model.UserAdmin)
}

func (h *AuthHandler) login(c *gin.Context, kind model.UserKind) {
	var req model.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.authService.Login(c.Request.Context(), kind, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// Logout godoc
// POST /api/v1/auth/logout
// Frees the student's device slot. Admin tokens simply expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// Me godoc
// GET /api/v1/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user, "permissions": claims.Permissions})
}

// UpdateProfile godoc
// PUT /api/v1/me/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	var req model.SelfProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.UpdateOwnProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// ChangePassword godoc
// PUT /api/v1/me/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := claimsOrFail(c)
	if !ok {
		return
	}
	var req model.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), claims.UserID, req); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "password changed"})
}
