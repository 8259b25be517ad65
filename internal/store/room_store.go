package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/models"
)

// RoomStore persists Room and its participants/interactions/matches.
type RoomStore struct {
	db *gorm.DB
}

func NewRoomStore(db *gorm.DB) *RoomStore {
	return &RoomStore{db: db}
}

// CodeTaken reports whether a non-finished room already owns this code.
func (s *RoomStore) CodeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Room{}).
		Where("code = ? AND status <> ?", code, models.RoomFinished).
		Count(&count).Error
	if err != nil {
		return false, apperr.Wrap(err, "check room code")
	}
	return count > 0, nil
}

func (s *RoomStore) Create(ctx context.Context, room *models.Room) error {
	room.CreatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		return apperr.Wrap(err, "create room")
	}
	return nil
}

// GetByCode loads the room with its live participants, interactions and
// matches eagerly, since RoomEngine operations need all three together.
func (s *RoomStore) GetByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).
		Preload("Participants").
		Preload("Interactions").
		Preload("Matches").
		Where("code = ?", code).
		First(&room).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("room not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "get room")
	}
	return &room, nil
}

func (s *RoomStore) UpdateStatus(ctx context.Context, roomID int64, status models.RoomStatus) error {
	if err := s.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", roomID).Update("status", status).Error; err != nil {
		return apperr.Wrap(err, "update room status")
	}
	return nil
}

func (s *RoomStore) AddParticipant(ctx context.Context, p *models.RoomParticipant) error {
	p.JoinedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return apperr.Wrap(err, "add participant")
	}
	return nil
}

func (s *RoomStore) SetMood(ctx context.Context, roomID int64, sessionID, mood string) error {
	res := s.db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ? AND session_id = ?", roomID, sessionID).
		Updates(map[string]interface{}{"mood": mood, "is_ready": true})
	if res.Error != nil {
		return apperr.Wrap(res.Error, "set mood")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("participant not found")
	}
	return nil
}

// RecordSwipe inserts an interaction; first write wins, later duplicates
// are silently ignored via ON CONFLICT DO NOTHING semantics emulated here
// with a pre-check since the unique constraint is composite and driver-
// agnostic upsert clauses vary across sqlite/postgres test doubles.
func (s *RoomStore) RecordSwipe(ctx context.Context, roomID int64, sessionID string, tmdbID int64, action models.SwipeAction) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RoomInteraction{}).
		Where("room_id = ? AND session_id = ? AND tmdb_id = ?", roomID, sessionID, tmdbID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Wrap(err, "check existing swipe")
	}
	if count > 0 {
		return false, nil
	}
	interaction := &models.RoomInteraction{
		RoomID:    roomID,
		SessionID: sessionID,
		TMDBID:    tmdbID,
		Action:    action,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(interaction).Error; err != nil {
		return false, apperr.Wrap(err, "record swipe")
	}
	return true, nil
}

func (s *RoomStore) MatchExists(ctx context.Context, roomID, tmdbID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RoomMatch{}).
		Where("room_id = ? AND tmdb_id = ?", roomID, tmdbID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Wrap(err, "check match")
	}
	return count > 0, nil
}

func (s *RoomStore) CreateMatch(ctx context.Context, roomID, tmdbID int64) (*models.RoomMatch, error) {
	m := &models.RoomMatch{RoomID: roomID, TMDBID: tmdbID, CreatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, apperr.Wrap(err, "create match")
	}
	return m, nil
}

func (s *RoomStore) CreateMatches(ctx context.Context, matches []models.RoomMatch) error {
	if len(matches) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&matches).Error; err != nil {
		return apperr.Wrap(err, "create matches")
	}
	return nil
}

// CleanupExpired deletes abandoned waiting/voting rooms older than the
// threshold outright; finished rooms past the threshold keep Room and
// RoomMatch but lose participants/interactions (session PII purge).
func (s *RoomStore) CleanupExpired(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)

	var abandoned []models.Room
	err := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []models.RoomStatus{models.RoomWaiting, models.RoomVoting}, cutoff).
		Find(&abandoned).Error
	if err != nil {
		return apperr.Wrap(err, "find abandoned rooms")
	}
	for _, r := range abandoned {
		if err := s.db.WithContext(ctx).Select("Participants", "Interactions", "Matches").Delete(&r).Error; err != nil {
			return apperr.Wrap(err, "delete abandoned room")
		}
	}

	var finishedIDs []int64
	err = s.db.WithContext(ctx).Model(&models.Room{}).
		Where("status = ? AND created_at < ?", models.RoomFinished, cutoff).
		Pluck("id", &finishedIDs).Error
	if err != nil {
		return apperr.Wrap(err, "find finished rooms")
	}
	if len(finishedIDs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("room_id IN ?", finishedIDs).Delete(&models.RoomParticipant{}).Error; err != nil {
		return apperr.Wrap(err, "purge finished room participants")
	}
	if err := s.db.WithContext(ctx).Where("room_id IN ?", finishedIDs).Delete(&models.RoomInteraction{}).Error; err != nil {
		return apperr.Wrap(err, "purge finished room interactions")
	}
	return nil
}
