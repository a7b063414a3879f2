package handler

import (
	"Arcana/internal/hub"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MonitorHandler handles the local monitoring API endpoints
type MonitorHandler interface {
	GetStats(c *gin.Context)
}

type monitorHandler struct {
	monitorService *hub.MonitorService
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService *hub.MonitorService) MonitorHandler {
	return &monitorHandler{
		monitorService: monitorService,
	}
}

// GetStats returns the current session manager statistics
// @Summary Get chat core statistics
// @Description Returns connection state, session, presence and moderation stats
// @Tags Monitor
// @Produce json
// @Success 200 {object} model.MonitorResponse
// @Router /api/monitor/stats [get]
func (h *monitorHandler) GetStats(c *gin.Context) {
	stats := h.monitorService.GetStats()

	c.JSON(http.StatusOK, gin.H{
		"HttpStatusCode": http.StatusOK,
		"ResponseBody":   stats,
		"IsSuccess":      true,
		"Message":        "Statistics retrieved successfully",
	})
}
