package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo identifies a realtime connection in logs and ws events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	IP          string
	RequestID   string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
