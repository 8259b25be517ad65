package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/models"
)

func TestWatchlistStoreAddDefaultsStatus(t *testing.T) {
	db := newTestDB(t)
	s := NewWatchlistStore(db)

	entry := &models.WatchlistEntry{UserID: 1, TMDBID: 10, ContentType: models.ContentMovie}
	require.NoError(t, s.Add(context.Background(), entry))

	rows, err := s.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.WatchlistToWatch, rows[0].Status)
}

func TestWatchlistStoreAddIgnoresDuplicates(t *testing.T) {
	db := newTestDB(t)
	s := NewWatchlistStore(db)

	require.NoError(t, s.Add(context.Background(), &models.WatchlistEntry{UserID: 1, TMDBID: 10, ContentType: models.ContentMovie}))
	require.NoError(t, s.Add(context.Background(), &models.WatchlistEntry{UserID: 1, TMDBID: 10, ContentType: models.ContentMovie}))

	rows, err := s.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWatchlistStoreUpdateStatus(t *testing.T) {
	db := newTestDB(t)
	s := NewWatchlistStore(db)
	require.NoError(t, s.Add(context.Background(), &models.WatchlistEntry{UserID: 1, TMDBID: 10, ContentType: models.ContentMovie}))

	require.NoError(t, s.UpdateStatus(context.Background(), 1, 10, models.ContentMovie, models.WatchlistWatching))

	rows, err := s.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.WatchlistWatching, rows[0].Status)
}

func TestWatchlistStoreUpdateStatusMissingEntry(t *testing.T) {
	s := NewWatchlistStore(newTestDB(t))

	err := s.UpdateStatus(context.Background(), 1, 404, models.ContentMovie, models.WatchlistDone)

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
