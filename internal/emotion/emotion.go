// Package emotion turns rated content into a per-user taste profile and
// scores the confidence of a single piece of analyzed text.
package emotion

import (
	"context"
	"math"
	"sync"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/embedding"
	"github.com/moodreel/core/internal/models"
	"github.com/moodreel/core/internal/notifier"
	"github.com/moodreel/core/internal/store"
	"github.com/moodreel/core/internal/vectorindex"
)

// profileMilestones are the confidence thresholds that trigger a
// notifier.ProfileMilestoneEvent the first time a profile crosses them.
var profileMilestones = []float64{0.5, 1.0}

// Analysis is the result of analyzing a piece of free text.
type Analysis struct {
	Embedding  []float32
	Confidence float64
}

// Profile is the read-only view of a user's accumulated taste.
type Profile struct {
	Embedding    []float32
	Confidence   float64
	WatchedCount int
}

// Analyzer computes and maintains UserEmotionalProfile state.
type Analyzer struct {
	embed    *embedding.Model
	index    *vectorindex.Index
	content  *store.ContentStore
	profile  *store.ProfileStore
	notifier notifier.Notifier

	userLocks sync.Map // userID -> *sync.Mutex
}

func New(embed *embedding.Model, index *vectorindex.Index, content *store.ContentStore, profile *store.ProfileStore, notif notifier.Notifier) *Analyzer {
	return &Analyzer{embed: embed, index: index, content: content, profile: profile, notifier: notif}
}

func (a *Analyzer) lockFor(userID int64) *sync.Mutex {
	l, _ := a.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Analyze encodes text and reports a confidence derived from how many
// "movie" neighbors the embedding finds nearby; the search results
// themselves are discarded, only their count matters.
func (a *Analyzer) Analyze(text string) Analysis {
	vec := a.embed.Encode(text)
	similar := a.index.Search(vec, 10, models.ContentMovie)
	confidence := math.Min(1, float64(len(similar))/10)
	return Analysis{Embedding: vec, Confidence: confidence}
}

// UpdateProfile applies the incremental weighted-average update from the
// data model's UserEmotionalProfile invariant, serialized per user so
// concurrent ratings for the same user never race the read-modify-write.
func (a *Analyzer) UpdateProfile(ctx context.Context, userID, tmdbID int64, rating int, ct models.ContentType) error {
	mu := a.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	item, err := a.itemEmbedding(ctx, tmdbID, ct)
	if err != nil {
		return err
	}

	current, err := a.profile.Get(ctx, userID)
	if err != nil && !apperr.Is(err, apperr.KindNoProfile) {
		return err
	}
	if current == nil {
		current = &models.UserEmotionalProfile{UserID: userID}
	}

	weight := float32(rating) / 10
	updated := make([]float32, models.EmbeddingDim)
	if current.WatchedCount == 0 {
		for i := range updated {
			updated[i] = item[i] * weight
		}
	} else {
		n := float32(current.WatchedCount)
		for i := range updated {
			updated[i] = (current.Embedding[i]*n + item[i]*weight) / (n + 1)
		}
	}
	updated = l2Normalize(updated)

	previousConfidence := current.Confidence
	current.Embedding = updated
	current.WatchedCount++
	current.Confidence = math.Min(1, float64(current.WatchedCount)/20)

	if err := a.profile.Save(ctx, current); err != nil {
		return err
	}

	for _, milestone := range profileMilestones {
		if previousConfidence < milestone && current.Confidence >= milestone {
			_ = a.notifier.NotifyProfileMilestone(ctx, notifier.ProfileMilestoneEvent{
				UserID:     userID,
				Confidence: current.Confidence,
			})
		}
	}
	return nil
}

func (a *Analyzer) itemEmbedding(ctx context.Context, tmdbID int64, ct models.ContentType) ([]float32, error) {
	if item, ok := a.index.SearchByID(ctx, ct, tmdbID); ok {
		return item.Embedding, nil
	}
	item, err := a.content.Get(ctx, tmdbID, ct)
	if err != nil {
		return nil, err
	}
	return item.Embedding, nil
}

// ProfileOf is a pure read of a user's accumulated profile.
func (a *Analyzer) ProfileOf(ctx context.Context, userID int64) (Profile, error) {
	p, err := a.profile.Get(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNoProfile) {
			return Profile{}, err
		}
		return Profile{}, err
	}
	return Profile{Embedding: p.Embedding, Confidence: p.Confidence, WatchedCount: p.WatchedCount}, nil
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
