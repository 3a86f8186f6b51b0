package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type settingService interface {
	GetAllSettings(ctx context.Context) (map[string]string, error)
	GetPublicSettings(ctx context.Context) (map[string]string, error)
	UpdateSettings(ctx context.Context, values map[string]string) error
}

type SettingHandler struct {
	settings settingService
}

func NewSettingHandler(settings settingService) *SettingHandler {
	return &SettingHandler{settings: settings}
}

// GetAllSettings godoc
// GET /api/v1/admin/settings
func (h *SettingHandler) GetAllSettings(c *gin.Context) {
	h.reply(c, h.settings.GetAllSettings)
}

// UpdateSettings godoc
// PUT /api/v1/admin/settings
// Known keys are validated; a rejected key fails the whole update with
// VALIDATION_ERROR and fields.detail naming the key. Responds with the
// stored settings after the write.
func (h *SettingHandler) UpdateSettings(c *gin.Context) {
	var req model.UpdateSettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.settings.UpdateSettings(c.Request.Context(), req.Settings); err != nil {
		fail(c, err)
		return
	}
	h.reply(c, h.settings.GetAllSettings)
}

// GetPublicSettings godoc
// GET /api/v1/public/settings
// Unauthenticated. Only app_name, school_logo_url and default_locale.
func (h *SettingHandler) GetPublicSettings(c *gin.Context) {
	h.reply(c, h.settings.GetPublicSettings)
}

func (h *SettingHandler) reply(c *gin.Context, load func(context.Context) (map[string]string, error)) {
	settings, err := load(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"settings": settings})
}
