package models

import "time"

// Comment is a note left on a group's page. Deletion only flips IsDeleted.
type Comment struct {
	ID          string    `db:"id" json:"id"`
	GroupID     string    `db:"group_id" json:"group"`
	CommenterID string    `db:"commenter_id" json:"commenter"`
	Content     string    `db:"content" json:"content"`
	IsDeleted   bool      `db:"is_deleted" json:"isDeleted"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// CommentView is a comment joined with its author's public profile.
type CommentView struct {
	Comment
	Commenter *UserSummary `json:"commenterProfile,omitempty"`
}
