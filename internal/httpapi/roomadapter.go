package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/moodreel/core/internal/models"
	"github.com/moodreel/core/internal/rooms"
	"github.com/moodreel/core/internal/wshub"
)

// roomAdapter implements wshub.RoomActions and wshub.RoomJoiner over a
// rooms.Engine, translating each successful state change into the
// matching ServerMessage broadcast. This is the seam that lets wshub stay
// free of any rooms import.
type roomAdapter struct {
	engine *rooms.Engine
	hub    *wshub.Hub
}

func newRoomAdapter(engine *rooms.Engine, hub *wshub.Hub) *roomAdapter {
	return &roomAdapter{engine: engine, hub: hub}
}

func (a *roomAdapter) JoinOrRejoin(roomCode, sessionID string) (int, error) {
	room, err := a.engine.JoinOrRejoin(context.Background(), sessionID, roomCode)
	if err != nil {
		return 0, err
	}
	return len(room.Participants), nil
}

func (a *roomAdapter) SubmitMood(roomCode, sessionID, text string) error {
	ctx := context.Background()
	if err := a.engine.SubmitMood(ctx, roomCode, sessionID, text); err != nil {
		return err
	}

	room, err := a.engine.GetByCode(ctx, roomCode)
	if err != nil {
		return err
	}
	readyCount := 0
	for _, p := range room.Participants {
		if p.IsReady {
			readyCount++
		}
	}
	total := len(room.Participants)
	a.hub.Broadcast(roomCode, wshub.ServerMessage{
		Type:       "user_ready",
		SessionID:  sessionID,
		AllReady:   readyCount == total && total > 0,
		ReadyCount: readyCount,
		TotalCount: total,
	})
	return nil
}

func (a *roomAdapter) Swipe(roomCode, sessionID string, tmdbID int64, action string) error {
	ctx := context.Background()
	swipeAction := models.SwipeAction(strings.ToLower(action))

	matched, allDone, err := a.engine.RecordSwipe(ctx, roomCode, sessionID, tmdbID, swipeAction)
	if err != nil {
		return err
	}
	if matched {
		a.hub.Broadcast(roomCode, wshub.ServerMessage{Type: "match_found", TMDBID: tmdbID})
	}
	if allDone {
		matches, err := a.engine.AutoFinish(ctx, roomCode)
		if err != nil {
			return err
		}
		a.hub.Broadcast(roomCode, wshub.ServerMessage{
			Type:    "voting_finished",
			Matches: matchesToWire(matches),
		})
	}
	return nil
}

func (a *roomAdapter) ForceStart(roomCode, sessionID string) error {
	ctx := context.Background()
	room, deck, err := a.engine.ForceStart(ctx, sessionID, roomCode)
	if err != nil {
		return err
	}
	a.hub.Broadcast(roomCode, wshub.ServerMessage{
		Type:            "start_voting",
		Recommendations: deck,
		ExpiresAt:       votingExpiresAt(room),
	})
	return nil
}

// votingExpiresAt is the ISO-8601 instant voting closes, counted from now
// for room.DurationMinutes.
func votingExpiresAt(room *models.Room) string {
	return time.Now().Add(time.Duration(room.DurationMinutes) * time.Minute).Format(time.RFC3339)
}

func (a *roomAdapter) ForceFinish(roomCode, sessionID string) error {
	ctx := context.Background()
	matches, err := a.engine.ForceFinish(ctx, sessionID, roomCode)
	if err != nil {
		return err
	}
	a.hub.Broadcast(roomCode, wshub.ServerMessage{
		Type:    "voting_finished",
		Matches: matchesToWire(matches),
		Detail:  "ended by creator",
	})
	return nil
}

type wireMatch struct {
	TMDBID int64 `json:"tmdb_id"`
}

func matchesToWire(matches []models.RoomMatch) []wireMatch {
	out := make([]wireMatch, len(matches))
	for i, m := range matches {
		out[i] = wireMatch{TMDBID: m.TMDBID}
	}
	return out
}
