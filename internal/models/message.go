package models

import "time"

// Message is a single entry of a group's chat log.
type Message struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group"`
	SenderID  string    `json:"sender"`
	Content   string    `json:"message"`
	ReadBy    []string  `json:"readBy"`
	Seq       int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// LastMessage is the newest message of a group as seen by one user.
type LastMessage struct {
	Content  string    `json:"message"`
	Time     time.Time `json:"time"`
	SenderID *string   `json:"sender"`
	IsMine   bool      `json:"isMe"`
}

// UnreadSummary aggregates unread counts over a set of groups.
type UnreadSummary struct {
	Total       int            `json:"total"`
	GroupCounts map[string]int `json:"groupCounts"`
}

// GroupLastMessage is one row of the last-message aggregation, before the
// per-user isMine projection. SenderID is nil when the sender is missing.
type GroupLastMessage struct {
	GroupID   string
	Content   string
	CreatedAt time.Time
	SenderID  *string
}

// MessageEvent is pushed to realtime subscribers when a message is stored.
type MessageEvent struct {
	Message
	SenderName string `json:"senderName,omitempty"`
}

// MessageView is a stored message with its sender's public profile, as
// returned by the history endpoint. Sender is nil when the user is gone.
type MessageView struct {
	Message
	Sender *UserSummary `json:"senderProfile,omitempty"`
}
