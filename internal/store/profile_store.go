package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/models"
)

// ProfileStore persists the single UserEmotionalProfile row per user.
type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) Get(ctx context.Context, userID int64) (*models.UserEmotionalProfile, error) {
	var p models.UserEmotionalProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NoProfile("no emotional profile for user")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "get profile")
	}
	return &p, nil
}

// Save upserts the full profile row. Callers (EmotionAnalyzer) are
// responsible for holding the per-user lock around read-modify-write.
func (s *ProfileStore) Save(ctx context.Context, p *models.UserEmotionalProfile) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ?", p.UserID).
		Assign(p).
		FirstOrCreate(p).Error
	if err != nil {
		return apperr.Wrap(err, "save profile")
	}
	return nil
}
