// Package recommend implements the recommendation modes: current-emotion,
// hybrid, history-based, profile-based and the anonymous public variants.
package recommend

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/cache"
	"github.com/moodreel/core/internal/embedding"
	"github.com/moodreel/core/internal/emotion"
	"github.com/moodreel/core/internal/metadataclient"
	"github.com/moodreel/core/internal/models"
	"github.com/moodreel/core/internal/store"
	"github.com/moodreel/core/internal/vectorindex"
)

const (
	PageSize            = 9
	MaxPages            = 5
	MaxRecommendations  = 45
	EmbeddingTopK       = 200
	MinVoteAverage      = 6.0
	DetailsFetchChunk   = 18
	EnrichmentWorkers   = 8
	scoreBandEpsilon    = 0.02
)

// CleanRec is a single served recommendation.
type CleanRec struct {
	TMDBID          int64       `json:"tmdb_id"`
	ContentType     models.ContentType `json:"content_type"`
	Title           string      `json:"title"`
	Overview        string      `json:"overview"`
	BackdropPath    string      `json:"backdrop_path"`
	PosterPath      string      `json:"poster_path"`
	ReleaseDate     string      `json:"release_date"`
	VoteAverage     float64     `json:"vote_average"`
	SimilarityScore int         `json:"similarity_score"`
	Rank            int         `json:"rank"`
}

// Envelope is the paginated response every mode returns.
type Envelope struct {
	Recommendations []CleanRec `json:"recommendations"`
	Total           int        `json:"total"`
	Page            int        `json:"page"`
	PageSize        int        `json:"page_size"`
	TotalPages      int        `json:"total_pages"`
	Method          string     `json:"method"`
}

// Engine computes recommendations for all modes.
type Engine struct {
	embed    *embedding.Model
	index    *vectorindex.Index
	emotion  *emotion.Analyzer
	ratings  *store.RatingStore
	profiles *store.ProfileStore
	reclog   *store.RecommendationLogStore
	meta     *metadataclient.Client
	cache    *cache.Cache

	rng   *rand.Rand
	rngMu sync.Mutex
}

func New(
	embed *embedding.Model,
	index *vectorindex.Index,
	emo *emotion.Analyzer,
	ratings *store.RatingStore,
	profiles *store.ProfileStore,
	reclog *store.RecommendationLogStore,
	meta *metadataclient.Client,
	ch *cache.Cache,
) *Engine {
	return &Engine{
		embed:    embed,
		index:    index,
		emotion:  emo,
		ratings:  ratings,
		profiles: profiles,
		reclog:   reclog,
		meta:     meta,
		cache:    ch,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *Engine) shuffle(n int, swap func(i, j int)) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng.Shuffle(n, swap)
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > MaxPages {
		return MaxPages
	}
	return page
}

func totalPages(total int) int {
	tp := int(math.Ceil(float64(total) / PageSize))
	if tp > MaxPages {
		tp = MaxPages
	}
	if tp < 0 {
		tp = 0
	}
	return tp
}

// scoreBandShuffle groups consecutive vectorindex.Result entries whose
// score differs from the band anchor by <= scoreBandEpsilon and shuffles
// each band independently, preserving global ranking while injecting
// local variety.
func (e *Engine) scoreBandShuffle(results []vectorindex.Result) []vectorindex.Result {
	out := make([]vectorindex.Result, len(results))
	copy(out, results)

	i := 0
	for i < len(out) {
		anchor := out[i].Score
		j := i + 1
		for j < len(out) && anchor-out[j].Score <= scoreBandEpsilon {
			j++
		}
		band := out[i:j]
		e.shuffle(len(band), func(a, b int) { band[a], band[b] = band[b], band[a] })
		i = j
	}
	return out
}

// excludeSet builds the set of tmdb ids a user has already rated.
func (e *Engine) excludeSet(ctx context.Context, userID int64, ct models.ContentType) (map[int64]struct{}, error) {
	ratings, err := e.ratings.ListByUser(ctx, userID, ct)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ratings))
	for _, r := range ratings {
		set[r.TMDBID] = struct{}{}
	}
	return set, nil
}

func filterExcluded(results []vectorindex.Result, exclude map[int64]struct{}) []vectorindex.Result {
	if len(exclude) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if _, skip := exclude[r.Item.TMDBID]; !skip {
			out = append(out, r)
		}
	}
	return out
}

// CurrentEmotion encodes text, searches the index, excludes already-rated
// titles, applies the score-band shuffle, paginates and enriches. Each
// served item is appended to the recommendation log.
func (e *Engine) CurrentEmotion(ctx context.Context, userID int64, text string, ct models.ContentType, page int) (Envelope, error) {
	vec := e.embed.Encode(text)
	return e.searchAndRespond(ctx, userID, vec, ct, page, string(models.RecCurrentEmotion), text, true)
}

// Hybrid blends the current-emotion query with the user's profile
// embedding (0.7 current / 0.3 profile). When no profile (or no profile
// embedding) exists yet it runs the unblended current-emotion query, still
// labelled and logged as method "hybrid".
func (e *Engine) Hybrid(ctx context.Context, userID int64, text string, ct models.ContentType, page int) (Envelope, error) {
	vec := e.embed.Encode(text)

	profile, err := e.profiles.Get(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNoProfile) {
			return e.searchAndRespond(ctx, userID, vec, ct, page, string(models.RecHybrid), text, true)
		}
		return Envelope{}, err
	}
	if !profile.HasEmbedding() {
		return e.searchAndRespond(ctx, userID, vec, ct, page, string(models.RecHybrid), text, true)
	}

	blended := blend(vec, profile.Embedding, 0.7, 0.3)
	return e.searchAndRespond(ctx, userID, blended, ct, page, string(models.RecHybrid), text, true)
}

func blend(a, b []float32, wa, wb float32) []float32 {
	out := make([]float32, len(a))
	for i := range out {
		out[i] = a[i]*wa + b[i]*wb
	}
	return l2Normalize(out)
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

// HistoryBased builds a preference vector by weighting each rated item's
// embedding by rating/10 (weights normalized to sum to 1) and searches
// with it. Not paginated; returns up to MaxRecommendations.
func (e *Engine) HistoryBased(ctx context.Context, userID int64, ct models.ContentType) (Envelope, error) {
	ratings, err := e.ratings.ListByUser(ctx, userID, ct)
	if err != nil {
		return Envelope{}, err
	}
	if len(ratings) == 0 {
		return Envelope{Recommendations: []CleanRec{}, Method: string(models.RecHistoryBased)}, nil
	}

	vec, err := e.weightedPreferenceVector(ctx, ratings, ct)
	if err != nil {
		return Envelope{}, err
	}
	exclude := make(map[int64]struct{}, len(ratings))
	for _, r := range ratings {
		exclude[r.TMDBID] = struct{}{}
	}

	results := e.index.Search(vec, EmbeddingTopK, ct)
	results = filterExcluded(results, exclude)
	results = e.scoreBandShuffle(results)
	if len(results) > MaxRecommendations {
		results = results[:MaxRecommendations]
	}

	recs := e.enrichAll(ctx, results)
	e.logServed(ctx, userID, recs, models.RecHistoryBased, "")
	return Envelope{
		Recommendations: recs,
		Total:           len(recs),
		Page:            1,
		PageSize:        len(recs),
		TotalPages:      1,
		Method:          string(models.RecHistoryBased),
	}, nil
}

func (e *Engine) weightedPreferenceVector(ctx context.Context, ratings []models.UserRating, ct models.ContentType) ([]float32, error) {
	var sumWeights float64
	acc := make([]float64, models.EmbeddingDim)
	for _, r := range ratings {
		item, ok := e.index.SearchByID(ctx, r.ContentType, r.TMDBID)
		if !ok {
			continue
		}
		w := float64(r.Rating) / 10
		sumWeights += w
		for i, x := range item.Embedding {
			acc[i] += float64(x) * w
		}
	}
	if sumWeights == 0 {
		return make([]float32, models.EmbeddingDim), nil
	}
	out := make([]float32, models.EmbeddingDim)
	for i, x := range acc {
		out[i] = float32(x / sumWeights)
	}
	return l2Normalize(out), nil
}

// ProfileBased mirrors HistoryBased but uses the stored profile embedding
// instead of rebuilding one from ratings. Fails with NoProfile when none.
func (e *Engine) ProfileBased(ctx context.Context, userID int64, ct models.ContentType) (Envelope, error) {
	profile, err := e.profiles.Get(ctx, userID)
	if err != nil {
		return Envelope{}, err
	}
	if !profile.HasEmbedding() {
		return Envelope{}, apperr.NoProfile("profile has no embedding yet")
	}

	exclude, err := e.excludeSet(ctx, userID, ct)
	if err != nil {
		return Envelope{}, err
	}

	results := e.index.Search(profile.Embedding, EmbeddingTopK, ct)
	results = filterExcluded(results, exclude)
	results = e.scoreBandShuffle(results)
	if len(results) > MaxRecommendations {
		results = results[:MaxRecommendations]
	}

	recs := e.enrichAll(ctx, results)
	e.logServed(ctx, userID, recs, models.RecProfileBased, "")
	return Envelope{
		Recommendations: recs,
		Total:           len(recs),
		Page:            1,
		PageSize:        len(recs),
		TotalPages:      1,
		Method:          string(models.RecProfileBased),
	}, nil
}

// EmotionPublic is the anonymous variant of CurrentEmotion: no per-user
// exclusion beyond an explicit exclude set, and the envelope is cached.
func (e *Engine) EmotionPublic(ctx context.Context, text string, ct models.ContentType, page int, exclude map[int64]struct{}) (Envelope, error) {
	key := fmt.Sprintf("rec:public:emotion:%s:%s:p%d:sz%d", text, ct, page, PageSize)
	var cached Envelope
	if e.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	vec := e.embed.Encode(text)
	results := e.index.Search(vec, EmbeddingTopK, ct)
	results = filterExcludedResults(results, exclude)
	results = e.scoreBandShuffle(results)

	env := e.paginate(ctx, results, page, string(models.RecEmotionPublic))
	e.cache.SetJSON(ctx, key, env, 10*time.Minute)
	return env, nil
}

func filterExcludedResults(results []vectorindex.Result, exclude map[int64]struct{}) []vectorindex.Result {
	if len(exclude) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if _, skip := exclude[r.Item.TMDBID]; !skip {
			out = append(out, r)
		}
	}
	return out
}

// EmotionPublicAll runs the search once per content type, merges
// candidates (deduped by content_type+tmdb_id), sorts by descending score
// and paginates.
func (e *Engine) EmotionPublicAll(ctx context.Context, text string, page int) (Envelope, error) {
	vec := e.embed.Encode(text)

	var merged []vectorindex.Result
	seen := make(map[string]struct{})
	for _, ct := range []models.ContentType{models.ContentMovie, models.ContentTV} {
		for _, r := range e.index.Search(vec, EmbeddingTopK, ct) {
			key := fmt.Sprintf("%s:%d", r.Item.ContentType, r.Item.TMDBID)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

	return e.paginate(ctx, merged, page, "emotion_public_all"), nil
}

func (e *Engine) searchAndRespond(ctx context.Context, userID int64, vec []float32, ct models.ContentType, page int, method, emotionText string, logIt bool) (Envelope, error) {
	exclude, err := e.excludeSet(ctx, userID, ct)
	if err != nil {
		return Envelope{}, err
	}
	results := e.index.Search(vec, EmbeddingTopK, ct)
	results = filterExcluded(results, exclude)
	results = e.scoreBandShuffle(results)

	env := e.paginate(ctx, results, page, method)
	if logIt {
		e.logServed(ctx, userID, env.Recommendations, models.RecommendationType(method), emotionText)
	}
	return env, nil
}

func (e *Engine) logServed(ctx context.Context, userID int64, recs []CleanRec, kind models.RecommendationType, emotionState string) {
	for _, r := range recs {
		_ = e.reclog.Append(ctx, &models.RecommendationLog{
			UserID:             userID,
			TMDBID:             r.TMDBID,
			ContentType:        r.ContentType,
			RecommendationType: kind,
			EmotionState:       emotionState,
			Score:              float64(r.SimilarityScore) / 100,
		})
	}
}

// paginate implements the stable paginated enrichment contract: chunk
// fetch starting at the page offset, walking results in original order so
// a page is exactly PageSize whenever enough valid candidates remain.
func (e *Engine) paginate(ctx context.Context, candidates []vectorindex.Result, page int, method string) Envelope {
	page = clampPage(page)
	total := len(candidates)
	tp := totalPages(total)

	start := (page - 1) * PageSize
	if start >= total {
		return Envelope{
			Recommendations: []CleanRec{},
			Total:           total,
			Page:            page,
			PageSize:        PageSize,
			TotalPages:      tp,
			Method:          method,
		}
	}

	recs := make([]CleanRec, 0, PageSize)
	i := start
	for i < total && len(recs) < PageSize {
		end := i + DetailsFetchChunk
		if end > total {
			end = total
		}
		chunk := e.enrichAll(ctx, candidates[i:end])
		for _, r := range chunk {
			if len(recs) == PageSize {
				break
			}
			recs = append(recs, r)
		}
		i = end
	}
	for idx := range recs {
		recs[idx].Rank = start + idx + 1
	}

	return Envelope{
		Recommendations: recs,
		Total:           total,
		Page:            page,
		PageSize:        PageSize,
		TotalPages:      tp,
		Method:          method,
	}
}

// enrichAll fans out detail enrichment up to EnrichmentWorkers in
// parallel, then reassembles results in the original candidate order so
// output is deterministic modulo the score-band shuffle's RNG.
func (e *Engine) enrichAll(ctx context.Context, results []vectorindex.Result) []CleanRec {
	type slot struct {
		rec CleanRec
		ok  bool
	}
	slots := make([]slot, len(results))

	sem := make(chan struct{}, EnrichmentWorkers)
	var wg sync.WaitGroup
	for i, r := range results {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, r vectorindex.Result) {
			defer wg.Done()
			defer func() { <-sem }()
			rec, ok := e.toCleanRec(ctx, r)
			slots[i] = slot{rec: rec, ok: ok}
		}(i, r)
	}
	wg.Wait()

	out := make([]CleanRec, 0, len(results))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.rec)
		}
	}
	return out
}

// toCleanRec fetches live details for a single candidate and shapes the
// served record from that live payload, falling back to the cached
// vectorindex fields only for whatever the live response leaves out. A
// 404/5xx (or a breaker-open Details call) drops the candidate entirely,
// matching the stable paginated enrichment's live-fetch-can-fail contract.
func (e *Engine) toCleanRec(ctx context.Context, r vectorindex.Result) (CleanRec, bool) {
	item := r.Item
	env, err := e.meta.Details(ctx, string(item.ContentType), item.TMDBID)
	if err != nil || !env.Success {
		return CleanRec{}, false
	}

	titleKey, releaseKey := "title", "release_date"
	if item.ContentType == models.ContentTV {
		titleKey, releaseKey = "name", "first_air_date"
	}

	voteAverage := metadataclient.FloatField(env.Data, "vote_average", item.VoteAverage)
	if voteAverage < MinVoteAverage {
		return CleanRec{}, false
	}
	score := r.Score
	if score < 0 {
		score = 0
	}
	return CleanRec{
		TMDBID:          item.TMDBID,
		ContentType:     item.ContentType,
		Title:           metadataclient.StringField(env.Data, titleKey, item.Title),
		Overview:        metadataclient.StringField(env.Data, "overview", item.Overview),
		BackdropPath:    metadataclient.StringField(env.Data, "backdrop_path", item.BackdropPath),
		PosterPath:      metadataclient.StringField(env.Data, "poster_path", item.PosterPath),
		ReleaseDate:     metadataclient.StringField(env.Data, releaseKey, item.ReleaseDate),
		VoteAverage:     voteAverage,
		SimilarityScore: int(math.Round(float64(score) * 100)),
	}, true
}
