package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/models"
)

// RatingStore persists UserRating rows, upserting on (user, tmdb, content_type).
type RatingStore struct {
	db *gorm.DB
}

func NewRatingStore(db *gorm.DB) *RatingStore {
	return &RatingStore{db: db}
}

func (s *RatingStore) Upsert(ctx context.Context, r *models.UserRating) error {
	r.CreatedAt = time.Now()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "tmdb_id"}, {Name: "content_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "created_at"}),
		}).
		Create(r).Error
	if err != nil {
		return apperr.Wrap(err, "upsert rating")
	}
	return nil
}

// ListByUser returns every rating a user has left, used by history_based
// and to build the exclusion set for current_emotion/hybrid.
func (s *RatingStore) ListByUser(ctx context.Context, userID int64, ct models.ContentType) ([]models.UserRating, error) {
	var rows []models.UserRating
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if ct != "" && ct != models.ContentMixed {
		q = q.Where("content_type = ?", ct)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(err, "list ratings")
	}
	return rows, nil
}
