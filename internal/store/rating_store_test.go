package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodreel/core/internal/models"
)

func TestRatingStoreUpsertOverwritesOnSameKey(t *testing.T) {
	db := newTestDB(t)
	s := NewRatingStore(db)

	require.NoError(t, s.Upsert(context.Background(), &models.UserRating{UserID: 1, TMDBID: 10, ContentType: models.ContentMovie, Rating: 6}))
	require.NoError(t, s.Upsert(context.Background(), &models.UserRating{UserID: 1, TMDBID: 10, ContentType: models.ContentMovie, Rating: 9}))

	rows, err := s.ListByUser(context.Background(), 1, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 9, rows[0].Rating)
}

func TestRatingStoreListByUserFiltersByContentType(t *testing.T) {
	db := newTestDB(t)
	s := NewRatingStore(db)
	require.NoError(t, s.Upsert(context.Background(), &models.UserRating{UserID: 1, TMDBID: 10, ContentType: models.ContentMovie, Rating: 8}))
	require.NoError(t, s.Upsert(context.Background(), &models.UserRating{UserID: 1, TMDBID: 20, ContentType: models.ContentTV, Rating: 7}))

	movies, err := s.ListByUser(context.Background(), 1, models.ContentMovie)
	require.NoError(t, err)
	assert.Len(t, movies, 1)

	all, err := s.ListByUser(context.Background(), 1, models.ContentMixed)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
