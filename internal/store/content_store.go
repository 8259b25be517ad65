// Package store holds the gorm-backed data access objects over Postgres.
package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/models"
)

// ContentStore persists CatalogueItem rows, unique by (content_type, tmdb_id).
type ContentStore struct {
	db *gorm.DB
}

func NewContentStore(db *gorm.DB) *ContentStore {
	return &ContentStore{db: db}
}

// Upsert inserts a new item or overwrites an existing one's fields
// (including a recomputed embedding) on re-ingest of the same id.
func (s *ContentStore) Upsert(ctx context.Context, item *models.CatalogueItem) error {
	if item.VoteAverage < 6.0 {
		return apperr.InvalidRoomAction("vote_average below ingestion floor")
	}
	err := s.db.WithContext(ctx).
		Where("tmdb_id = ? AND content_type = ?", item.TMDBID, item.ContentType).
		Assign(item).
		FirstOrCreate(item).Error
	if err != nil {
		return apperr.Wrap(err, "upsert catalogue item")
	}
	return nil
}

func (s *ContentStore) Get(ctx context.Context, tmdbID int64, ct models.ContentType) (*models.CatalogueItem, error) {
	var item models.CatalogueItem
	err := s.db.WithContext(ctx).
		Where("tmdb_id = ? AND content_type = ?", tmdbID, ct).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("catalogue item not found")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "get catalogue item")
	}
	return &item, nil
}

// ListByIDs batch-loads items for VectorIndex.search_by_id fallbacks and
// enrichment. Missing ids are simply absent from the result.
func (s *ContentStore) ListByIDs(ctx context.Context, ct models.ContentType, ids []int64) ([]models.CatalogueItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.CatalogueItem
	err := s.db.WithContext(ctx).
		Where("content_type = ? AND tmdb_id IN ?", ct, ids).
		Find(&items).Error
	if err != nil {
		return nil, apperr.Wrap(err, "list catalogue items")
	}
	return items, nil
}

// ListAllEligible streams every item eligible for the vector index (used
// to rebuild/warm the index at startup when persisted files are missing).
func (s *ContentStore) ListAllEligible(ctx context.Context) ([]models.CatalogueItem, error) {
	var all []models.CatalogueItem
	var batchItems []models.CatalogueItem
	err := s.db.WithContext(ctx).
		Where("vote_average >= ?", 6.0).
		FindInBatches(&batchItems, 500, func(tx *gorm.DB, batch int) error {
			all = append(all, batchItems...)
			return nil
		}).Error
	if err != nil {
		return nil, apperr.Wrap(err, "list eligible catalogue items")
	}
	return all, nil
}
