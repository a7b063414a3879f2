package approuters

import (
	"Arcana/internal/configuration"

	"github.com/gin-gonic/gin"
)

// MonitorRouters registers the monitoring endpoints.
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitor := router.Group("/api/monitor")
	{
		monitor.GET("/stats", container.MonitorHandler.GetStats)
	}
}
