package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasEmbedding(t *testing.T) {
	assert.False(t, UserEmotionalProfile{WatchedCount: 0}.HasEmbedding())
	assert.True(t, UserEmotionalProfile{WatchedCount: 1}.HasEmbedding())
	assert.True(t, UserEmotionalProfile{WatchedCount: 42}.HasEmbedding())
}

func TestContentTypeConstants(t *testing.T) {
	assert.Equal(t, ContentType("movie"), ContentMovie)
	assert.Equal(t, ContentType("tv"), ContentTV)
	assert.Equal(t, ContentType("mixed"), ContentMixed)
}

func TestSwipeActionConstantsAreLowercase(t *testing.T) {
	assert.Equal(t, SwipeAction("like"), SwipeLike)
	assert.Equal(t, SwipeAction("dislike"), SwipeDislike)
	assert.Equal(t, SwipeAction("superlike"), SwipeSuperlike)
}
