package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/telemetry"
	"studygroup-service/internal/ws"
)

// RegisterOpsRoutes mounts operator endpoints for checking the realtime hub
// and the audit pipeline of a running instance. Nothing is mounted unless
// enabled.
func RegisterOpsRoutes(router gin.IRoutes, hub *ws.Hub, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	// Local sessions only; peers behind the relay are not counted.
	router.GET("/ops/groups/:group_id/subscribers", func(c *gin.Context) {
		groupID, ok := pathID(c, "group_id")
		if !ok {
			return
		}
		subscribers := 0
		if hub != nil {
			subscribers = hub.Subscribers(groupID)
		}
		c.JSON(http.StatusOK, gin.H{"groupId": groupID, "subscribers": subscribers})
	})

	router.POST("/ops/audit", func(c *gin.Context) {
		if emitter == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "ops.audit_check", "study group audit pipeline check", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusAccepted, gin.H{"status": "published"})
	})
}
