// Package notifier defines the out-of-scope-collaborator port the core
// calls into when a room finishes or a user's emotional profile crosses a
// confidence milestone. Sending the actual email/push notification is
// somebody else's concern; this package only models the interface and
// ships a logging stub so the core compiles and runs standalone.
package notifier

import (
	"context"

	"go.uber.org/zap"
)

// RoomFinishedEvent carries the detail a notifier needs to tell a
// participant their room has converged on matches.
type RoomFinishedEvent struct {
	RoomCode  string
	SessionID string
	MatchIDs  []int64
}

// ProfileMilestoneEvent fires when a user's emotional profile confidence
// crosses one of the milestone thresholds (e.g. 0.5, 1.0).
type ProfileMilestoneEvent struct {
	UserID     int64
	Confidence float64
}

// Notifier is the port the core depends on. Implementations live outside
// this module (email, push, SMS); this package only defines the contract
// and a no-op logging stand-in.
type Notifier interface {
	NotifyRoomFinished(ctx context.Context, event RoomFinishedEvent) error
	NotifyProfileMilestone(ctx context.Context, event ProfileMilestoneEvent) error
}

// LoggingNotifier is a no-op Notifier that records what it would have
// sent. It's the default wired at startup until a real collaborator
// (email/push provider) is plugged in.
type LoggingNotifier struct {
	log *zap.Logger
}

func NewLoggingNotifier(log *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{log: log}
}

func (n *LoggingNotifier) NotifyRoomFinished(ctx context.Context, event RoomFinishedEvent) error {
	n.log.Info("notify_room_finished",
		zap.String("room_code", event.RoomCode),
		zap.String("session_id", event.SessionID),
		zap.Int64s("match_ids", event.MatchIDs),
	)
	return nil
}

func (n *LoggingNotifier) NotifyProfileMilestone(ctx context.Context, event ProfileMilestoneEvent) error {
	n.log.Info("notify_profile_milestone",
		zap.Int64("user_id", event.UserID),
		zap.Float64("confidence", event.Confidence),
	)
	return nil
}
