package models

import "time"

// Group represents a study group.
type Group struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"group"`
	Description string    `db:"description" json:"description"`
	ImagePath   string    `db:"image_path" json:"groupImage"`
	LeaderID    string    `db:"leader_id" json:"groupLeader"`
	MemberIDs   []string  `db:"-" json:"groupMembers"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

const DefaultGroupImage = "/uploads/study-groups/default-groupImage.png"
