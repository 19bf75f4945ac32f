package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/apperrors"
	"studygroup-service/internal/membership"
	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
	"studygroup-service/internal/sanitize"
	"studygroup-service/internal/telemetry"
)

// CommentHandler serves a group's comment board.
type CommentHandler struct {
	groups   repositories.GroupRepository
	comments repositories.CommentRepository
	auditor
}

func NewCommentHandler(groups repositories.GroupRepository, comments repositories.CommentRepository, audit *telemetry.AuditEmitter) *CommentHandler {
	return &CommentHandler{groups: groups, comments: comments, auditor: auditor{emitter: audit}}
}

type commentRequest struct {
	Content string `json:"content"`
}

func bindCommentContent(c *gin.Context) (string, bool) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("invalid request payload"))
		return "", false
	}
	content := sanitize.Text(req.Content)
	if content == "" {
		respondError(c, apperrors.Validation("content is required"))
		return "", false
	}
	return content, true
}

// ListComments handles GET /groups/:group_id/comments.
func (h *CommentHandler) ListComments(c *gin.Context) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	if _, err := h.groups.GetGroup(c.Request.Context(), groupID); err != nil {
		respondError(c, err)
		return
	}
	comments, err := h.comments.ListByGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	if comments == nil {
		comments = []models.CommentView{}
	}
	c.JSON(http.StatusOK, comments)
}

// CreateComment handles POST /groups/:group_id/comments.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return
	}
	content, ok := bindCommentContent(c)
	if !ok {
		return
	}
	if _, err := h.groups.GetGroup(c.Request.Context(), groupID); err != nil {
		respondError(c, err)
		return
	}

	comment, err := h.comments.CreateComment(c.Request.Context(), groupID, caller, content)
	if err != nil {
		respondError(c, err)
		return
	}
	h.emit(c, "INFO", "comment.create", "comment created")
	c.JSON(http.StatusCreated, comment)
}

// UpdateComment handles PUT /groups/:group_id/comments/:comment_id. Author only.
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	groupID, commentID, ok := commentPath(c)
	if !ok {
		return
	}
	content, ok := bindCommentContent(c)
	if !ok {
		return
	}

	comment, err := h.loadComment(c.Request.Context(), groupID, commentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !models.SameID(comment.CommenterID, caller) {
		respondError(c, apperrors.Forbidden("only the author can edit this comment"))
		return
	}

	updated, err := h.comments.UpdateContent(c.Request.Context(), commentID, content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteComment handles DELETE /groups/:group_id/comments/:comment_id.
// The author or the group leader may delete; the row is only flagged.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	groupID, commentID, ok := commentPath(c)
	if !ok {
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	comment, err := h.loadComment(c.Request.Context(), groupID, commentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !models.SameID(comment.CommenterID, caller) && !membership.IsLeader(group, caller) {
		respondError(c, apperrors.Forbidden("only the author or the group leader can delete this comment"))
		return
	}

	deleted, err := h.comments.SoftDelete(c.Request.Context(), commentID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.emit(c, "INFO", "comment.delete", "comment deleted")
	c.JSON(http.StatusOK, deleted)
}

func commentPath(c *gin.Context) (string, string, bool) {
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return "", "", false
	}
	commentID, ok := pathID(c, "comment_id")
	if !ok {
		return "", "", false
	}
	return groupID, commentID, true
}

// loadComment fetches a comment and treats one filed under another group as missing.
func (h *CommentHandler) loadComment(ctx context.Context, groupID, commentID string) (models.Comment, error) {
	comment, err := h.comments.GetComment(ctx, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if !models.SameID(comment.GroupID, groupID) {
		return models.Comment{}, repositories.ErrCommentNotFound
	}
	return comment, nil
}
