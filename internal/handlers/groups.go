package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"studygroup-service/internal/apperrors"
	"studygroup-service/internal/membership"
	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
	"studygroup-service/internal/sanitize"
	"studygroup-service/internal/telemetry"
)

// GroupHandler manages study group endpoints.
type GroupHandler struct {
	groups   repositories.GroupRepository
	messages repositories.MessageStore
	comments repositories.CommentRepository
	auditor
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups repositories.GroupRepository, messages repositories.MessageStore, comments repositories.CommentRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groups: groups, messages: messages, comments: comments, auditor: auditor{emitter: audit}}
}

// ListGroups handles GET /groups. With ?mine=true only the caller's groups
// are returned.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	var (
		groups []models.Group
		err    error
	)
	if c.Query("mine") == "true" {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		groups, err = h.groups.ListGroupsForUser(c.Request.Context(), caller)
	} else {
		groups, err = h.groups.ListGroups(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	c.JSON(http.StatusOK, groups)
}

// CreateGroup handles POST /groups. The caller becomes leader and first member.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req struct {
		GroupName     string `json:"groupName"`
		Description   string `json:"description"`
		GroupImageURL string `json:"groupImageUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request payload"))
		return
	}
	name := sanitize.Text(req.GroupName)
	if name == "" {
		respondError(c, apperrors.Validation("groupName is required"))
		return
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), caller, name, sanitize.Text(req.Description), strings.TrimSpace(req.GroupImageURL))
	if err != nil {
		respondError(c, err)
		return
	}

	h.emit(c, "INFO", "group.create", "group created")
	c.JSON(http.StatusCreated, group)
}

// GetGroup handles GET /groups/:group_id.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// UpdateGroup handles PUT /groups/:group_id. Leader only; blank fields keep
// their current value.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	var req struct {
		GroupName   *string `json:"groupName"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request payload"))
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !membership.IsLeader(group, caller) {
		respondError(c, apperrors.Forbidden("only the group leader can edit the group"))
		return
	}

	name, description := group.Name, group.Description
	if req.GroupName != nil {
		if n := sanitize.Text(*req.GroupName); n != "" {
			name = n
		}
	}
	if req.Description != nil {
		description = sanitize.Text(*req.Description)
	}

	updated, err := h.groups.UpdateGroup(c.Request.Context(), groupID, name, description)
	if err != nil {
		respondError(c, err)
		return
	}
	h.emit(c, "INFO", "group.update", "group updated")
	c.JSON(http.StatusOK, updated)
}

// JoinGroup handles POST /groups/:group_id/join. Joining twice is a no-op.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !membership.IsMember(group, caller) {
		if err := h.groups.AddMember(c.Request.Context(), groupID, caller); err != nil {
			respondError(c, err)
			return
		}
		group.MemberIDs = append(group.MemberIDs, caller)
		h.emit(c, "INFO", "group.join", "member joined")
	}
	c.JSON(http.StatusOK, group)
}

// DeleteGroup handles DELETE /groups/:group_id. Leader only.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !membership.IsLeader(group, caller) {
		respondError(c, apperrors.Forbidden("only the group leader can delete the group"))
		return
	}

	if err := h.deleteCascade(c, groupID); err != nil {
		respondError(c, err)
		return
	}
	h.emit(c, "INFO", "group.delete", "group deleted")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// deleteCascade removes comments, messages, member references and finally
// the group. Steps are independent; the first failure stops the sequence
// and leaves earlier deletions in place.
func (h *GroupHandler) deleteCascade(c *gin.Context, groupID string) error {
	ctx := c.Request.Context()
	logger := log.With().Str("group", groupID).Str("request_id", requestIDFromContext(c)).Logger()

	steps := []struct {
		name string
		run  func() (int64, error)
	}{
		{"comments", func() (int64, error) { return h.comments.DeleteByGroup(ctx, groupID) }},
		{"messages", func() (int64, error) { return h.messages.DeleteByGroup(ctx, groupID) }},
		{"members", func() (int64, error) { return h.groups.RemoveAllMembers(ctx, groupID) }},
		{"group", func() (int64, error) { return 1, h.groups.DeleteGroup(ctx, groupID) }},
	}
	for _, step := range steps {
		n, err := step.run()
		if err != nil {
			logger.Error().Err(err).Str("step", step.name).Msg("group delete cascade stopped")
			return err
		}
		logger.Debug().Str("step", step.name).Int64("deleted", n).Msg("group delete cascade step")
	}
	return nil
}
