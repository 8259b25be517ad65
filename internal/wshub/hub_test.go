package wshub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRegisteredClient(t *testing.T, h *Hub, roomCode, sessionID string, buf int) *Client {
	t.Helper()
	c := &Client{SessionID: sessionID, RoomCode: roomCode, Send: make(chan []byte, buf), Hub: h}
	h.register <- c
	return c
}

func recv(t *testing.T, ch chan []byte) ServerMessage {
	t.Helper()
	select {
	case payload := <-ch:
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return ServerMessage{}
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zap.NewNop())
	go h.Run()
	t.Cleanup(func() {})
	return h
}

func TestBroadcastDeliversToEveryClientInRoom(t *testing.T) {
	h := newTestHub(t)
	a := newRegisteredClient(t, h, "ROOM1", "sess-a", 4)
	b := newRegisteredClient(t, h, "ROOM1", "sess-b", 4)

	h.Broadcast("ROOM1", ServerMessage{Type: "deck_ready", TotalCount: 2})

	assert.Equal(t, "deck_ready", recv(t, a.Send).Type)
	assert.Equal(t, "deck_ready", recv(t, b.Send).Type)
}

func TestBroadcastDoesNotCrossRooms(t *testing.T) {
	h := newTestHub(t)
	inRoom := newRegisteredClient(t, h, "ROOM1", "sess-a", 4)
	otherRoom := newRegisteredClient(t, h, "ROOM2", "sess-b", 4)

	h.Broadcast("ROOM1", ServerMessage{Type: "mood_submitted"})

	assert.Equal(t, "mood_submitted", recv(t, inRoom.Send).Type)
	select {
	case <-otherRoom.Send:
		t.Fatal("broadcast leaked into a different room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendToTargetsOnlyMatchingSession(t *testing.T) {
	h := newTestHub(t)
	a := newRegisteredClient(t, h, "ROOM1", "sess-a", 4)
	b := newRegisteredClient(t, h, "ROOM1", "sess-b", 4)

	h.SendTo("ROOM1", "sess-b", ServerMessage{Type: "match_found", TMDBID: 42})

	msg := recv(t, b.Send)
	assert.Equal(t, int64(42), msg.TMDBID)
	select {
	case <-a.Send:
		t.Fatal("sendTo leaked to an unrelated session")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestParticipantCountReflectsRegistrations(t *testing.T) {
	h := newTestHub(t)
	assert.Equal(t, 0, h.ParticipantCount("ROOM1"))

	newRegisteredClient(t, h, "ROOM1", "sess-a", 4)
	newRegisteredClient(t, h, "ROOM1", "sess-b", 4)

	assertEventuallyEqual(t, 2, func() int { return h.ParticipantCount("ROOM1") })
}

func TestUnregisterNotifiesRemainingParticipants(t *testing.T) {
	h := newTestHub(t)
	a := newRegisteredClient(t, h, "ROOM1", "sess-a", 4)
	b := newRegisteredClient(t, h, "ROOM1", "sess-b", 4)

	h.unregister <- a

	msg := recv(t, b.Send)
	assert.Equal(t, "user_left", msg.Type)
	assert.Equal(t, "sess-a", msg.SessionID)
	assert.Equal(t, 1, msg.ParticipantsCnt)
}

func TestUnregisterTwiceIsSafe(t *testing.T) {
	h := newTestHub(t)
	a := newRegisteredClient(t, h, "ROOM1", "sess-a", 4)

	h.unregister <- a
	assertEventuallyEqual(t, 0, func() int { return h.ParticipantCount("ROOM1") })

	assert.NotPanics(t, func() {
		h.unregister <- a
		time.Sleep(50 * time.Millisecond)
	})
}

func assertEventuallyEqual(t *testing.T, want int, got func() int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, want, got())
}
