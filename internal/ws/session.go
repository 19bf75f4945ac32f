package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"studygroup-service/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Session is one realtime connection and the set of group channels it has
// joined. joined and closed are guarded by the hub's lock.
type Session struct {
	conn   *websocket.Conn
	userID string
	info   ConnInfo
	send   chan []byte
	joined map[string]struct{}
	closed bool
	log    zerolog.Logger
}

func newSession(conn *websocket.Conn, userID string, info ConnInfo, buffer int) *Session {
	return &Session{
		conn:   conn,
		userID: userID,
		info:   info,
		send:   make(chan []byte, buffer),
		joined: make(map[string]struct{}),
		log:    logger.Component("ws.session").With().Str("conn_id", info.ConnID).Str("user_id", userID).Logger(),
	}
}

// UserID is the authenticated user behind the connection.
func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) trySend(frame []byte) bool {
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// readPump feeds inbound frames to the dispatcher until the connection
// fails. It returns the close reason.
func (s *Session) readPump(ctx context.Context, d *Dispatcher) string {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				s.log.Debug().Msg("websocket closed")
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
				s.log.Warn().Err(err).Msg("unexpected websocket close")
			default:
				s.log.Debug().Err(err).Msg("websocket read error")
			}
			return err.Error()
		}
		d.Dispatch(ctx, s, raw)
	}
}

// writePump drains the send queue to the socket, one frame per message,
// and keeps the peer alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
