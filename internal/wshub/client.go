package wshub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RoomActions is the domain-side callback surface a Client dispatches
// client messages to. httpapi supplies the concrete implementation
// backed by rooms.Engine, keeping this package free of room-engine
// imports.
type RoomActions interface {
	SubmitMood(roomCode, sessionID, text string) error
	Swipe(roomCode, sessionID string, tmdbID int64, action string) error
	ForceStart(roomCode, sessionID string) error
	ForceFinish(roomCode, sessionID string) error
}

func (c *Client) readPump(log *zap.Logger, actions RoomActions) {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid JSON")
			continue
		}
		c.dispatch(msg, actions)
	}
}

func (c *Client) dispatch(msg ClientMessage, actions RoomActions) {
	var err error
	switch msg.Type {
	case "submit_mood":
		err = actions.SubmitMood(c.RoomCode, c.SessionID, msg.Text)
	case "swipe":
		err = actions.Swipe(c.RoomCode, c.SessionID, msg.TMDBID, msg.Action)
	case "force_start":
		err = actions.ForceStart(c.RoomCode, c.SessionID)
	case "force_finish":
		err = actions.ForceFinish(c.RoomCode, c.SessionID)
	default:
		c.sendError("unknown message type")
		return
	}
	if err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) sendError(detail string) {
	payload, err := json.Marshal(ServerMessage{Type: "error", Detail: detail})
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start launches the read/write pumps for c.
func (c *Client) Start(log *zap.Logger, actions RoomActions) {
	go c.writePump()
	go c.readPump(log, actions)
}
