package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"studygroup-service/internal/apperrors"
	"studygroup-service/internal/middleware"
	"studygroup-service/internal/models"
	"studygroup-service/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if userID, ok := middleware.UserID(c); ok {
		return &userID
	}
	return nil
}

// callerID returns the authenticated user or writes 401.
func callerID(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apperrors.Unauthenticated("authentication required"))
		return "", false
	}
	return userID, true
}

// pathID normalizes a UUID path parameter or writes 400.
func pathID(c *gin.Context, param string) (string, bool) {
	id, err := models.NormalizeID(c.Param(param))
	if err != nil {
		respondError(c, apperrors.Validation("invalid "+param))
		return "", false
	}
	return id, true
}

// respondError writes the error's status and client-safe message. Internal
// errors are logged with their detail.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("request_id", requestIDFromContext(c)).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"message": apperrors.PublicMessage(err)})
}

type auditor struct {
	emitter *telemetry.AuditEmitter
}

func (a auditor) emit(c *gin.Context, level, action, text string) {
	a.emitter.Emit(c.Request.Context(), level, action, text, requestIDFromContext(c), userIDFromContext(c))
}
