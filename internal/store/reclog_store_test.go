package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodreel/core/internal/models"
)

func TestRecommendationLogStoreAppendAndMarkViewed(t *testing.T) {
	db := newTestDB(t)
	s := NewRecommendationLogStore(db)
	entry := &models.RecommendationLog{UserID: 1, TMDBID: 10, ContentType: models.ContentMovie, RecommendationType: models.RecHybrid, Score: 0.9}

	require.NoError(t, s.Append(context.Background(), entry))
	require.NotZero(t, entry.ID)

	require.NoError(t, s.MarkViewed(context.Background(), entry.ID))

	var reloaded models.RecommendationLog
	require.NoError(t, db.First(&reloaded, entry.ID).Error)
	assert.True(t, reloaded.Viewed)
}
