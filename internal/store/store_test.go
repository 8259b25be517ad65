package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/moodreel/core/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.CatalogueItem{},
		&models.UserRating{},
		&models.WatchlistEntry{},
		&models.UserEmotionalProfile{},
		&models.RecommendationLog{},
		&models.Room{},
		&models.RoomParticipant{},
		&models.RoomInteraction{},
		&models.RoomMatch{},
	))
	return db
}

func sampleItem(id int64) *models.CatalogueItem {
	return &models.CatalogueItem{
		TMDBID:      id,
		ContentType: models.ContentMovie,
		Title:       "Sample",
		VoteAverage: 7.5,
		Embedding:   make([]float32, models.EmbeddingDim),
		UpdatedAt:   time.Now(),
	}
}
