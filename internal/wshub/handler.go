package wshub

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades /rooms/{code}/ws?session_id={sid} connections and
// registers them with a Hub.
type Handler struct {
	hub      *Hub
	log      *zap.Logger
	actions  RoomActions
	joiner   RoomJoiner
	upgrader websocket.Upgrader
}

// RoomJoiner adds a session to a room (or confirms its existing
// membership), returning the live participant count. A connection whose
// join fails never reaches the message loop and the socket is closed
// with a policy-violation code, per spec.
type RoomJoiner interface {
	JoinOrRejoin(roomCode, sessionID string) (participantsCount int, err error)
}

func NewHandler(hub *Hub, log *zap.Logger, joiner RoomJoiner, actions RoomActions) *Handler {
	return &Handler{
		hub:    hub,
		log:    log,
		joiner: joiner,
		actions: actions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles the gin route for a room's WebSocket endpoint.
func (h *Handler) Serve() gin.HandlerFunc {
	return func(c *gin.Context) {
		roomCode := c.Param("code")
		sessionID := c.Query("session_id")
		if sessionID == "" {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		count, err := h.joiner.JoinOrRejoin(roomCode, sessionID)
		if err != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
				time.Now().Add(writeWait))
			conn.Close()
			return
		}

		client := &Client{
			SessionID: sessionID,
			RoomCode:  roomCode,
			Conn:      conn,
			Send:      make(chan []byte, 64),
			Hub:       h.hub,
		}
		h.hub.register <- client
		h.hub.Broadcast(roomCode, ServerMessage{
			Type:            "user_joined",
			SessionID:       sessionID,
			ParticipantsCnt: count,
		})
		client.Start(h.log, h.actions)
	}
}
