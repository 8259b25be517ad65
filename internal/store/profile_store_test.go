package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/models"
)

func TestProfileStoreGetMissingReturnsNoProfile(t *testing.T) {
	s := NewProfileStore(newTestDB(t))

	_, err := s.Get(context.Background(), 1)

	assert.True(t, apperr.Is(err, apperr.KindNoProfile))
}

func TestProfileStoreSaveThenGet(t *testing.T) {
	db := newTestDB(t)
	s := NewProfileStore(db)
	p := &models.UserEmotionalProfile{UserID: 5, WatchedCount: 1, Confidence: 0.05, Embedding: make([]float32, models.EmbeddingDim)}

	require.NoError(t, s.Save(context.Background(), p))

	got, err := s.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, got.WatchedCount)
}

func TestProfileStoreSaveOverwritesExisting(t *testing.T) {
	db := newTestDB(t)
	s := NewProfileStore(db)
	require.NoError(t, s.Save(context.Background(), &models.UserEmotionalProfile{UserID: 5, WatchedCount: 1}))
	require.NoError(t, s.Save(context.Background(), &models.UserEmotionalProfile{UserID: 5, WatchedCount: 2}))

	got, err := s.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, got.WatchedCount)
}
