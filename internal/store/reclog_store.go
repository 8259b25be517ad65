package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/models"
)

// RecommendationLogStore appends served-recommendation audit rows. Never
// updated in place except to mark Viewed.
type RecommendationLogStore struct {
	db *gorm.DB
}

func NewRecommendationLogStore(db *gorm.DB) *RecommendationLogStore {
	return &RecommendationLogStore{db: db}
}

func (s *RecommendationLogStore) Append(ctx context.Context, log *models.RecommendationLog) error {
	log.CreatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return apperr.Wrap(err, "append recommendation log")
	}
	return nil
}

func (s *RecommendationLogStore) MarkViewed(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&models.RecommendationLog{}).Where("id = ?", id).Update("viewed", true)
	if res.Error != nil {
		return apperr.Wrap(res.Error, "mark recommendation viewed")
	}
	return nil
}
