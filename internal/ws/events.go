package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"studygroup-service/internal/apperrors"
	"studygroup-service/internal/logger"
	"studygroup-service/internal/models"
	"studygroup-service/internal/observability"
)

const (
	eventJoinGroup       = "joinGroup"
	eventJoinGroups      = "joinGroups"
	eventLeaveGroup      = "leaveGroup"
	eventSendMessage     = "sendMessage"
	eventGroups          = "groups"
	eventReceivedMessage = "receivedMessage"
	eventAck             = "ack"
)

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ack   json.RawMessage `json:"ack,omitempty"`
}

type outboundFrame struct {
	Event string          `json:"event"`
	Data  interface{}     `json:"data,omitempty"`
	Ack   json.RawMessage `json:"ack,omitempty"`
}

type ackData struct {
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
}

type sendMessageData struct {
	Content  string `json:"content"`
	SenderID string `json:"senderId"`
	GroupID  string `json:"groupId"`
}

// ChatService is the messaging core the realtime layer drives.
type ChatService interface {
	Authorize(ctx context.Context, groupID, userID string) (models.Group, error)
	Send(ctx context.Context, groupID, senderID, content string) (models.MessageEvent, error)
	Groups(ctx context.Context) ([]models.Group, error)
}

// Dispatcher routes inbound client events for a session.
type Dispatcher struct {
	hub  *Hub
	chat ChatService
	log  zerolog.Logger
}

func NewDispatcher(hub *Hub, chat ChatService) *Dispatcher {
	return &Dispatcher{hub: hub, chat: chat, log: logger.Component("ws.dispatch")}
}

// Dispatch handles one raw client frame.
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		d.ack(s, nil, ackData{OK: false, Error: "malformed frame"}, true)
		return
	}
	observability.IncWSEvent(frame.Event)

	switch frame.Event {
	case eventJoinGroup:
		d.joinGroup(ctx, s, frame)
	case eventJoinGroups:
		d.joinGroups(ctx, s, frame)
	case eventLeaveGroup:
		d.leaveGroup(s, frame)
	case eventSendMessage:
		d.sendMessage(ctx, s, frame)
	case eventGroups:
		d.groups(ctx, s, frame)
	default:
		d.ack(s, frame.Ack, ackData{OK: false, Error: "unknown event"}, true)
	}
}

func (d *Dispatcher) joinGroup(ctx context.Context, s *Session, frame inboundFrame) {
	var groupID string
	if err := json.Unmarshal(frame.Data, &groupID); err != nil {
		d.ack(s, frame.Ack, ackData{OK: false, Error: "joinGroup expects a group id"}, false)
		return
	}
	if err := d.join(ctx, s, groupID); err != nil {
		d.ack(s, frame.Ack, d.failure(s, eventJoinGroup, err), false)
		return
	}
	d.ack(s, frame.Ack, ackData{OK: true}, false)
}

func (d *Dispatcher) joinGroups(ctx context.Context, s *Session, frame inboundFrame) {
	var groupIDs []string
	if err := json.Unmarshal(frame.Data, &groupIDs); err != nil {
		d.ack(s, frame.Ack, ackData{OK: false, Error: "joinGroups expects a list of group ids"}, false)
		return
	}
	result := ackData{OK: true}
	for _, groupID := range groupIDs {
		if err := d.join(ctx, s, groupID); err != nil {
			if apperrors.HTTPStatus(err) == http.StatusInternalServerError {
				d.log.Error().Err(err).Str("group", groupID).Msg("joinGroups lookup failed")
			}
			result.Skipped = append(result.Skipped, groupID)
		}
	}
	d.ack(s, frame.Ack, result, false)
}

func (d *Dispatcher) join(ctx context.Context, s *Session, groupID string) error {
	group, err := d.chat.Authorize(ctx, groupID, s.userID)
	if err != nil {
		return err
	}
	d.hub.Join(s, group.ID)
	return nil
}

func (d *Dispatcher) leaveGroup(s *Session, frame inboundFrame) {
	var raw string
	if err := json.Unmarshal(frame.Data, &raw); err != nil {
		d.ack(s, frame.Ack, ackData{OK: false, Error: "leaveGroup expects a group id"}, false)
		return
	}
	groupID, err := models.NormalizeID(raw)
	if err != nil {
		d.ack(s, frame.Ack, ackData{OK: false, Error: "invalid groupId"}, false)
		return
	}
	d.hub.Leave(s, groupID)
	d.ack(s, frame.Ack, ackData{OK: true}, false)
}

// sendMessage stores first and broadcasts only what was stored. Failures
// are reported to the sender alone.
func (d *Dispatcher) sendMessage(ctx context.Context, s *Session, frame inboundFrame) {
	var data sendMessageData
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		d.ack(s, frame.Ack, ackData{OK: false, Error: "malformed sendMessage payload"}, true)
		return
	}
	if data.SenderID != "" && !models.SameID(data.SenderID, s.userID) {
		d.ack(s, frame.Ack, d.failure(s, eventSendMessage, apperrors.Forbidden("senderId does not match the connected user")), true)
		return
	}

	event, err := d.chat.Send(ctx, data.GroupID, s.userID, data.Content)
	if err != nil {
		d.ack(s, frame.Ack, d.failure(s, eventSendMessage, err), true)
		return
	}

	d.hub.Broadcast(ctx, event)
	d.ack(s, frame.Ack, ackData{OK: true}, false)
}

func (d *Dispatcher) groups(ctx context.Context, s *Session, frame inboundFrame) {
	groups, err := d.chat.Groups(ctx)
	if err != nil {
		d.ack(s, frame.Ack, d.failure(s, eventGroups, err), true)
		return
	}
	reply, err := encodeFrame(eventGroups, groups, frame.Ack)
	if err != nil {
		d.log.Error().Err(err).Msg("encode groups")
		return
	}
	d.hub.reply(s, reply)
}

// failure logs err and turns it into a client-safe ack.
func (d *Dispatcher) failure(s *Session, event string, err error) ackData {
	entry := d.log.Warn()
	var custom *apperrors.CustomError
	if !errors.As(err, &custom) {
		entry = d.log.Error()
	}
	entry.Err(err).Str("event", event).Str("user_id", s.userID).Str("conn_id", s.info.ConnID).Msg("realtime event failed")
	return ackData{OK: false, Error: apperrors.PublicMessage(err)}
}

// ack replies to the requesting session. Without an ack id the reply is
// sent only when force is set.
func (d *Dispatcher) ack(s *Session, id json.RawMessage, data ackData, force bool) {
	if len(id) == 0 && !force {
		return
	}
	frame, err := encodeFrame(eventAck, data, id)
	if err != nil {
		d.log.Error().Err(err).Msg("encode ack")
		return
	}
	d.hub.reply(s, frame)
}
