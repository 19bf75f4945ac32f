package ws

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"studygroup-service/internal/logger"
	"studygroup-service/internal/models"
	"studygroup-service/internal/observability"
)

// Relay forwards broadcasts to other service instances.
type Relay interface {
	Publish(ctx context.Context, event models.MessageEvent) error
}

// Hub maps group channels to the sessions subscribed to them.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Session]struct{}
	relay    Relay
	log      zerolog.Logger
}

// NewHub creates an empty hub. relay may be nil for single-instance runs.
func NewHub(relay Relay) *Hub {
	return &Hub{
		channels: make(map[string]map[*Session]struct{}),
		relay:    relay,
		log:      logger.Component("ws.hub"),
	}
}

// Join subscribes the session to a group channel. Joining twice is a no-op.
func (h *Hub) Join(s *Session, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	members, ok := h.channels[groupID]
	if !ok {
		members = make(map[*Session]struct{})
		h.channels[groupID] = members
	}
	members[s] = struct{}{}
	s.joined[groupID] = struct{}{}
}

// Leave unsubscribes the session from a group channel.
func (h *Hub) Leave(s *Session, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(s, groupID)
}

func (h *Hub) leaveLocked(s *Session, groupID string) {
	if members, ok := h.channels[groupID]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.channels, groupID)
		}
	}
	delete(s.joined, groupID)
}

// Remove drops the session from every channel it joined and closes its
// outbound queue.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for groupID := range s.joined {
		h.leaveLocked(s, groupID)
	}
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// Groups returns the ids of the channels the session has joined.
func (h *Hub) Groups(s *Session) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(s.joined))
	for id := range s.joined {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribers reports how many sessions are in a group channel.
func (h *Hub) Subscribers(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[groupID])
}

// Broadcast pushes a stored message to every local subscriber of its group
// and hands it to the relay for other instances.
func (h *Hub) Broadcast(ctx context.Context, event models.MessageEvent) {
	h.DeliverLocal(event)
	if h.relay == nil {
		return
	}
	if err := h.relay.Publish(ctx, event); err != nil {
		h.log.Warn().Err(err).Str("group", event.GroupID).Msg("relay publish failed")
	}
}

// DeliverLocal fans a message out to this instance's subscribers only.
func (h *Hub) DeliverLocal(event models.MessageEvent) {
	frame, err := encodeFrame(eventReceivedMessage, event, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("encode receivedMessage")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.channels[event.GroupID] {
		if !s.trySend(frame) {
			observability.IncBroadcastDropped()
			h.log.Warn().Str("group", event.GroupID).Str("conn_id", s.info.ConnID).Msg("send buffer full, frame dropped")
		}
	}
}

// reply queues a frame for one session unless it has been removed.
func (h *Hub) reply(s *Session, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s.closed {
		return
	}
	if !s.trySend(frame) {
		observability.IncBroadcastDropped()
	}
}

func encodeFrame(event string, data interface{}, ack json.RawMessage) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data, Ack: ack})
}
