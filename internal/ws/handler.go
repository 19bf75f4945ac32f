package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"studygroup-service/internal/logger"
	"studygroup-service/internal/middleware"
	"studygroup-service/internal/observability"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests into realtime sessions.
type Handler struct {
	hub        *Hub
	dispatcher *Dispatcher
	sendBuffer int
	log        zerolog.Logger
}

// NewHandler constructs a Handler. Routes using it must run behind
// middleware.Identity.
func NewHandler(hub *Hub, dispatcher *Dispatcher, sendBuffer int) *Handler {
	return &Handler{hub: hub, dispatcher: dispatcher, sendBuffer: sendBuffer, log: logger.Component("ws")}
}

// Handle upgrades the connection and runs the session until it closes.
func (h *Handler) Handle(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	ctx, span := otel.Tracer("studygroup-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   middleware.GetRequestID(c),
		ConnectedAt: time.Now(),
	}
	s := newSession(conn, userID, info, h.sendBuffer)

	// The request context ends when this handler returns.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	publishWSEvent(sessionCtx, "ws_connect", info, "")

	go s.writePump()
	go func() {
		defer cancel()
		reason := s.readPump(sessionCtx, h.dispatcher)
		h.hub.Remove(s)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		publishWSEvent(sessionCtx, "ws_disconnect", info, reason)
	}()
}

func publishWSEvent(ctx context.Context, name string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.groups", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": info.UserID,
				"ip":      info.IP,
			},
		},
	}, observability.BuildHeaders(ctx, info.RequestID))
}
