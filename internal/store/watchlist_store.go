package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/models"
)

// WatchlistStore persists WatchlistEntry rows. The distilled spec defines
// the entity but leaves the store inert; Add/UpdateStatus/ListByUser round
// out the surface so recommendation-sourced entries are usable end to end.
type WatchlistStore struct {
	db *gorm.DB
}

func NewWatchlistStore(db *gorm.DB) *WatchlistStore {
	return &WatchlistStore{db: db}
}

func (s *WatchlistStore) Add(ctx context.Context, e *models.WatchlistEntry) error {
	if e.Status == "" {
		e.Status = models.WatchlistToWatch
	}
	e.AddedAt = time.Now()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "tmdb_id"}, {Name: "content_type"}},
			DoNothing: true,
		}).
		Create(e).Error
	if err != nil {
		return apperr.Wrap(err, "add watchlist entry")
	}
	return nil
}

func (s *WatchlistStore) UpdateStatus(ctx context.Context, userID, tmdbID int64, ct models.ContentType, status models.WatchlistStatus) error {
	res := s.db.WithContext(ctx).Model(&models.WatchlistEntry{}).
		Where("user_id = ? AND tmdb_id = ? AND content_type = ?", userID, tmdbID, ct).
		Update("status", status)
	if res.Error != nil {
		return apperr.Wrap(res.Error, "update watchlist status")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("watchlist entry not found")
	}
	return nil
}

func (s *WatchlistStore) ListByUser(ctx context.Context, userID int64) ([]models.WatchlistEntry, error) {
	var rows []models.WatchlistEntry
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("added_at desc").Find(&rows).Error; err != nil {
		return nil, apperr.Wrap(err, "list watchlist")
	}
	return rows, nil
}
