package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/models"
)

func TestContentStoreUpsertRejectsBelowIngestionFloor(t *testing.T) {
	s := NewContentStore(newTestDB(t))
	item := sampleItem(1)
	item.VoteAverage = 5.0

	err := s.Upsert(context.Background(), item)

	assert.True(t, apperr.Is(err, apperr.KindInvalidRoomAction))
}

func TestContentStoreUpsertThenGet(t *testing.T) {
	db := newTestDB(t)
	s := NewContentStore(db)
	item := sampleItem(7)
	item.Title = "Paprika"

	require.NoError(t, s.Upsert(context.Background(), item))

	got, err := s.Get(context.Background(), 7, models.ContentMovie)
	require.NoError(t, err)
	assert.Equal(t, "Paprika", got.Title)
}

func TestContentStoreUpsertOverwritesOnReingest(t *testing.T) {
	db := newTestDB(t)
	s := NewContentStore(db)

	first := sampleItem(9)
	first.Title = "Original Title"
	require.NoError(t, s.Upsert(context.Background(), first))

	second := sampleItem(9)
	second.Title = "Updated Title"
	require.NoError(t, s.Upsert(context.Background(), second))

	got, err := s.Get(context.Background(), 9, models.ContentMovie)
	require.NoError(t, err)
	assert.Equal(t, "Updated Title", got.Title)
}

func TestContentStoreGetNotFound(t *testing.T) {
	s := NewContentStore(newTestDB(t))

	_, err := s.Get(context.Background(), 404, models.ContentMovie)

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestContentStoreListByIDs(t *testing.T) {
	db := newTestDB(t)
	s := NewContentStore(db)
	require.NoError(t, s.Upsert(context.Background(), sampleItem(1)))
	require.NoError(t, s.Upsert(context.Background(), sampleItem(2)))
	require.NoError(t, s.Upsert(context.Background(), sampleItem(3)))

	items, err := s.ListByIDs(context.Background(), models.ContentMovie, []int64{1, 3, 999})

	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestContentStoreListByIDsEmptyInput(t *testing.T) {
	s := NewContentStore(newTestDB(t))

	items, err := s.ListByIDs(context.Background(), models.ContentMovie, nil)

	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestContentStoreListAllEligibleFiltersByVoteAverage(t *testing.T) {
	db := newTestDB(t)
	s := NewContentStore(db)
	require.NoError(t, s.Upsert(context.Background(), sampleItem(1)))
	lowRated := sampleItem(2)
	lowRated.VoteAverage = 6.0
	require.NoError(t, s.Upsert(context.Background(), lowRated))

	items, err := s.ListAllEligible(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 2)
}
