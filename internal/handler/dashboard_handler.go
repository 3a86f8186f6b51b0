package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/service"
)

type dashboardService interface {
	GetDashboardData(ctx context.Context, scope service.DashboardScope) (*service.DashboardData, error)
}

type DashboardHandler struct {
	dashboard dashboardService
}

func NewDashboardHandler(dashboard dashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GetDashboardData godoc
// GET /api/v1/admin/dashboard?school_id=&class_level_id=&limit=
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	var scope service.DashboardScope
	if !bindQuery(c, &scope) {
		return
	}
	data, err := h.dashboard.GetDashboardData(c.Request.Context(), scope)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, data)
}
