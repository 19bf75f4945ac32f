package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/apperrors"
	"studygroup-service/internal/chat"
	"studygroup-service/internal/models"
	"studygroup-service/internal/telemetry"
	"studygroup-service/internal/ws"
)

// MessageHandler serves chat history, read state and badge endpoints.
type MessageHandler struct {
	chat *chat.Service
	hub  *ws.Hub
	auditor
}

// NewMessageHandler constructs a MessageHandler. hub may be nil when no
// realtime layer is mounted.
func NewMessageHandler(chatService *chat.Service, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{chat: chatService, hub: hub, auditor: auditor{emitter: audit}}
}

func groupListFromQuery(c *gin.Context) ([]string, bool) {
	groupIDs, err := models.SplitIDList(c.Query("group"))
	if err != nil {
		respondError(c, apperrors.Validation("invalid group list"))
		return nil, false
	}
	return groupIDs, true
}

// UnreadNotifications handles GET /notification and /unread-notifications.
func (h *MessageHandler) UnreadNotifications(c *gin.Context) {
	groupIDs, ok := groupListFromQuery(c)
	if !ok {
		return
	}
	summary, err := h.chat.UnreadCounts(c.Request.Context(), c.Query("userId"), groupIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// LastMessages handles GET /lastMessages and /last-messages.
func (h *MessageHandler) LastMessages(c *gin.Context) {
	groupIDs, ok := groupListFromQuery(c)
	if !ok {
		return
	}
	last, err := h.chat.LastMessages(c.Request.Context(), c.Query("userId"), groupIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, last)
}

// MarkRead handles PUT /read and /mark-read. The body's userId defaults to
// the caller and may not name anyone else.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		GroupID string `json:"groupId"`
		UserID  string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request payload"))
		return
	}
	if req.UserID == "" {
		req.UserID = caller
	}
	if !models.SameID(req.UserID, caller) {
		respondError(c, apperrors.Forbidden("cannot mark messages read for another user"))
		return
	}

	if err := h.chat.MarkRead(c.Request.Context(), req.GroupID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GroupMessages handles GET /groups/:group_id/messages.
func (h *MessageHandler) GroupMessages(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}

	views, err := h.chat.History(c.Request.Context(), groupID, caller)
	if err != nil {
		if apperrors.HTTPStatus(err) == http.StatusForbidden {
			h.emit(c, "WARN", "messages.read_denied", "non-member requested group messages")
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// PostGroupMessage handles POST /groups/:group_id/messages for clients
// without a realtime connection. Stored messages are broadcast like
// realtime sends.
func (h *MessageHandler) PostGroupMessage(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request payload"))
		return
	}

	event, err := h.chat.Send(c.Request.Context(), groupID, caller, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.hub != nil {
		h.hub.Broadcast(c.Request.Context(), event)
	}
	c.JSON(http.StatusCreated, event)
}
