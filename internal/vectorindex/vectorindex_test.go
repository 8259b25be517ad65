package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodreel/core/internal/models"
)

func unit(dims ...float32) []float32 {
	v := make([]float32, models.EmbeddingDim)
	copy(v, dims)
	return v
}

func TestAddRejectsBelowIngestionFloor(t *testing.T) {
	idx := New(t.TempDir(), nil, nil)

	ok := idx.Add(models.CatalogueItem{TMDBID: 1, ContentType: models.ContentMovie, VoteAverage: 5.9, Embedding: unit(1)})

	assert.False(t, ok)
	assert.Equal(t, 0, idx.Len())
}

func TestAddAndSearchByID(t *testing.T) {
	idx := New(t.TempDir(), nil, nil)
	item := models.CatalogueItem{TMDBID: 42, ContentType: models.ContentMovie, Title: "Arrival", VoteAverage: 7.9, Embedding: unit(1, 0, 0)}

	ok := idx.Add(item)
	require.True(t, ok)
	assert.Equal(t, 1, idx.Len())

	found, ok := idx.SearchByID(context.Background(), models.ContentMovie, 42)
	require.True(t, ok)
	assert.Equal(t, "Arrival", found.Title)

	_, ok = idx.SearchByID(context.Background(), models.ContentTV, 42)
	assert.False(t, ok)
}

func TestSearchRanksByInnerProductAndFiltersType(t *testing.T) {
	idx := New(t.TempDir(), nil, nil)
	idx.Add(models.CatalogueItem{TMDBID: 1, ContentType: models.ContentMovie, VoteAverage: 7, Embedding: unit(1, 0)})
	idx.Add(models.CatalogueItem{TMDBID: 2, ContentType: models.ContentTV, VoteAverage: 7, Embedding: unit(0, 1)})
	idx.Add(models.CatalogueItem{TMDBID: 3, ContentType: models.ContentMovie, VoteAverage: 7, Embedding: unit(0.9, 0.1)})

	query := unit(1, 0)
	all := idx.Search(query, 10, "")
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].Item.TMDBID, "closest vector should rank first")

	moviesOnly := idx.Search(query, 10, models.ContentMovie)
	require.Len(t, moviesOnly, 2)
	for _, r := range moviesOnly {
		assert.Equal(t, models.ContentMovie, r.Item.ContentType)
	}
}

func TestSearchOnEmptyIndexReturnsNil(t *testing.T) {
	idx := New(t.TempDir(), nil, nil)
	assert.Empty(t, idx.Search(unit(1), 5, ""))
}

func TestOptimizeIfLargeNoopsBelowThreshold(t *testing.T) {
	idx := New(t.TempDir(), nil, nil)
	idx.Add(models.CatalogueItem{TMDBID: 1, ContentType: models.ContentMovie, VoteAverage: 7, Embedding: unit(1)})

	switched := idx.OptimizeIfLarge()

	assert.False(t, switched)
}

func TestPersistAndLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	idx := New(dir, nil, nil)
	idx.Add(models.CatalogueItem{TMDBID: 7, ContentType: models.ContentMovie, Title: "Paprika", VoteAverage: 8.2, Embedding: unit(0.5, 0.5)})

	require.NoError(t, idx.Persist())

	reloaded := New(dir, nil, nil)
	reloaded.Load()

	assert.Equal(t, 1, reloaded.Len())
	item, ok := reloaded.SearchByID(context.Background(), models.ContentMovie, 7)
	require.True(t, ok)
	assert.Equal(t, "Paprika", item.Title)
}

func TestLoadOnMissingFilesLeavesIndexEmpty(t *testing.T) {
	idx := New(t.TempDir(), nil, nil)

	idx.Load()

	assert.Equal(t, 0, idx.Len())
}
