// Package wshub implements the per-room WebSocket hub: connection
// registry, broadcast fan-out and the room voting message protocol.
package wshub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ServerMessage is any {type, ...} frame sent to clients.
type ServerMessage struct {
	Type            string      `json:"type"`
	SessionID       string      `json:"session_id,omitempty"`
	ParticipantsCnt int         `json:"participants_count,omitempty"`
	AllReady        bool        `json:"all_ready,omitempty"`
	ReadyCount      int         `json:"ready_count,omitempty"`
	TotalCount      int         `json:"total_count,omitempty"`
	Recommendations interface{} `json:"recommendations,omitempty"`
	ExpiresAt       string      `json:"expires_at,omitempty"`
	TMDBID          int64       `json:"tmdb_id,omitempty"`
	Matches         interface{} `json:"matches,omitempty"`
	Detail          string      `json:"detail,omitempty"`
}

// ClientMessage is any {type, ...} frame received from a client.
type ClientMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	TMDBID int64  `json:"tmdb_id,omitempty"`
	Action string `json:"action,omitempty"`
}

// Client is one WebSocket connection, scoped to a single room and session.
type Client struct {
	SessionID string
	RoomCode  string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
}

// Hub fans messages out to every client connected to a given room code.
// Broadcasts preserve enqueue order per connection; a client whose send
// buffer is full misses that message (the drop is logged) rather than
// blocking the others. The client itself stays registered.
type Hub struct {
	log *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomBroadcast
}

type roomBroadcast struct {
	roomCode string
	payload  []byte
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:        log,
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomBroadcast, 64),
	}
}

// Run processes register/unregister/broadcast events until ctx-independent
// shutdown (the hub lives for the process lifetime, like the room store).
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case b := <-h.broadcast:
			h.deliver(b)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[c.RoomCode] == nil {
		h.rooms[c.RoomCode] = make(map[*Client]struct{})
	}
	h.rooms[c.RoomCode][c] = struct{}{}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.rooms[c.RoomCode]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := clients[c]; !present {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	close(c.Send)
	if len(clients) == 0 {
		delete(h.rooms, c.RoomCode)
	}
	remaining := make([]*Client, 0, len(clients))
	for rc := range clients {
		remaining = append(remaining, rc)
	}
	h.mu.Unlock()

	payload, err := json.Marshal(ServerMessage{
		Type:            "user_left",
		SessionID:       c.SessionID,
		ParticipantsCnt: len(remaining),
	})
	if err != nil {
		return
	}
	for _, rc := range remaining {
		select {
		case rc.Send <- payload:
		default:
			h.log.Warn("dropping slow websocket consumer", zap.String("room", c.RoomCode), zap.String("session_id", rc.SessionID))
		}
	}
}

func (h *Hub) deliver(b roomBroadcast) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[b.roomCode] {
		select {
		case c.Send <- b.payload:
		default:
			h.log.Warn("dropping slow websocket consumer", zap.String("room", b.roomCode), zap.String("session_id", c.SessionID))
		}
	}
}

// Broadcast sends msg to every client currently connected to roomCode.
func (h *Hub) Broadcast(roomCode string, msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal broadcast message failed", zap.Error(err))
		return
	}
	h.broadcast <- roomBroadcast{roomCode: roomCode, payload: payload}
}

// SendTo sends msg only to sessionID's connection within roomCode, if any.
func (h *Hub) SendTo(roomCode, sessionID string, msg ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomCode] {
		if c.SessionID == sessionID {
			select {
			case c.Send <- payload:
			default:
			}
		}
	}
}

// ParticipantCount returns how many live connections a room currently has.
func (h *Hub) ParticipantCount(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 2048
)
