// Package vectorindex is an embedded flat/IVF approximate-nearest-neighbor
// index over unit vectors, with local binary persistence. It replaces the
// external vector-database client the teacher used to talk to Milvus:
// the contract here is in-process and file-backed, not a wire protocol.
package vectorindex

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/moodreel/core/internal/embedding"
	"github.com/moodreel/core/internal/metadataclient"
	"github.com/moodreel/core/internal/models"
)

// IndexType mirrors the teacher's vocabulary, narrowed to what an
// embedded index actually implements.
type IndexType string

const (
	IndexTypeFlat IndexType = "FLAT"
	IndexTypeIVF  IndexType = "IVF_FLAT"
)

// MetricType is always inner product: both vectors are unit-normalized,
// so IP is equivalent to cosine similarity.
const MetricTypeIP = "IP"

const (
	optimizeThreshold = 100_000
	maxNlist          = 4096
)

// Result is one hit from Search: the stored payload plus its score.
type Result struct {
	Item  models.CatalogueItem
	Score float32
}

// Index holds N unit vectors and their parallel CatalogueItem payloads.
// Mutations (Add/Persist/Load/OptimizeIfLarge) take the writer lock;
// Search takes only the reader lock and may run concurrently with other
// searches.
type Index struct {
	mu sync.RWMutex

	vectors  [][]float32
	payloads []models.CatalogueItem
	byKey    map[itemKey]int // (content_type, tmdb_id) -> index, for dedup/search_by_id

	kind  IndexType
	ivf   *ivfIndex
	paths persistPaths

	meta  *metadataclient.Client
	embed *embedding.Model

	lazyMu sync.RWMutex
	lazy   map[itemKey]models.CatalogueItem // SearchByID fetch-on-miss cache, never persisted
}

type itemKey struct {
	ct models.ContentType
	id int64
}

// New builds an Index backed by dir. meta and embed back the
// search_by_id fetch-on-miss fallback (§4.1): when a lookup isn't in the
// index, fetch details live, embed lazily, and cache the result
// in-memory only. Either may be nil, in which case a miss just misses.
func New(dir string, meta *metadataclient.Client, embed *embedding.Model) *Index {
	return &Index{
		byKey: make(map[itemKey]int),
		kind:  IndexTypeFlat,
		paths: newPersistPaths(dir),
		meta:  meta,
		embed: embed,
		lazy:  make(map[itemKey]models.CatalogueItem),
	}
}

// Len returns the current vector/payload count.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Add appends a vector and payload. Returns false without mutating when
// the item falls below the ingestion floor. Idempotency (deduplicating by
// (content_type, tmdb_id)) is the caller's responsibility.
func (idx *Index) Add(item models.CatalogueItem) bool {
	if item.VoteAverage < 6.0 {
		return false
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.vectors = append(idx.vectors, item.Embedding)
	idx.payloads = append(idx.payloads, item)
	idx.byKey[itemKey{item.ContentType, item.TMDBID}] = len(idx.vectors) - 1

	if idx.ivf != nil {
		idx.ivf = nil // searches run flat until the next OptimizeIfLarge rebuilds it
	}
	return true
}

// Search returns the top-k items by inner product with query. When ct is
// non-empty, results are filtered to that content type, over-fetching 2k
// candidates internally so the filtered page still yields k when possible.
func (idx *Index) Search(query []float32, k int, ct models.ContentType) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	fetch := k
	if ct != "" {
		fetch = k * 2
	}
	raw := idx.searchRaw(query, fetch)

	if ct == "" {
		if len(raw) > k {
			raw = raw[:k]
		}
		return raw
	}

	out := make([]Result, 0, k)
	for _, r := range raw {
		if r.Item.ContentType == ct {
			out = append(out, r)
			if len(out) == k {
				break
			}
		}
	}
	return out
}

func (idx *Index) searchRaw(query []float32, k int) []Result {
	if len(idx.vectors) == 0 {
		return nil
	}
	if idx.kind == IndexTypeIVF && idx.ivf != nil {
		return idx.ivf.search(idx.vectors, idx.payloads, query, k)
	}
	return flatSearch(idx.vectors, idx.payloads, query, k)
}

func flatSearch(vectors [][]float32, payloads []models.CatalogueItem, query []float32, k int) []Result {
	results := make([]Result, 0, len(vectors))
	for i, v := range vectors {
		results = append(results, Result{Item: payloads[i], Score: dot(v, query)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func dot(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// SearchByID looks up the payload and embedding by (content_type, id)
// in the in-memory key map. On a
// miss, and when meta/embed were supplied to New, it fetches details
// live, embeds the result, and caches it in an in-memory-only map so
// repeat lookups for the same cold item don't refetch. The fetched item
// is never written to the persisted vectors/payloads — persistence
// stays ContentStore's job.
func (idx *Index) SearchByID(ctx context.Context, ct models.ContentType, tmdbID int64) (models.CatalogueItem, bool) {
	idx.mu.RLock()
	i, ok := idx.byKey[itemKey{ct, tmdbID}]
	if ok {
		item := idx.payloads[i]
		idx.mu.RUnlock()
		return item, true
	}
	idx.mu.RUnlock()

	if item, ok := idx.lazyGet(ct, tmdbID); ok {
		return item, true
	}
	return idx.fetchAndCache(ctx, ct, tmdbID)
}

func (idx *Index) lazyGet(ct models.ContentType, tmdbID int64) (models.CatalogueItem, bool) {
	idx.lazyMu.RLock()
	defer idx.lazyMu.RUnlock()
	item, ok := idx.lazy[itemKey{ct, tmdbID}]
	return item, ok
}

func (idx *Index) fetchAndCache(ctx context.Context, ct models.ContentType, tmdbID int64) (models.CatalogueItem, bool) {
	if idx.meta == nil || idx.embed == nil {
		return models.CatalogueItem{}, false
	}
	env, err := idx.meta.Details(ctx, string(ct), tmdbID)
	if err != nil || !env.Success {
		return models.CatalogueItem{}, false
	}
	item, ok := itemFromDetails(env.Data, ct, tmdbID)
	if !ok {
		return models.CatalogueItem{}, false
	}
	item.Embedding = idx.embed.Encode(item.Title + " " + item.Overview)

	idx.lazyMu.Lock()
	idx.lazy[itemKey{ct, tmdbID}] = item
	idx.lazyMu.Unlock()
	return item, true
}

// itemFromDetails decodes a metadataclient Details payload into a
// CatalogueItem, mirroring the shape TMDB-style movie/tv detail
// responses share (movie uses "title"/"release_date", tv uses
// "name"/"first_air_date").
func itemFromDetails(data map[string]interface{}, ct models.ContentType, tmdbID int64) (models.CatalogueItem, bool) {
	if data == nil {
		return models.CatalogueItem{}, false
	}
	item := models.CatalogueItem{
		TMDBID:       tmdbID,
		ContentType:  ct,
		Overview:     metadataclient.StringField(data, "overview", ""),
		PosterPath:   metadataclient.StringField(data, "poster_path", ""),
		BackdropPath: metadataclient.StringField(data, "backdrop_path", ""),
		VoteAverage:  metadataclient.FloatField(data, "vote_average", 0),
		VoteCount:    int(metadataclient.FloatField(data, "vote_count", 0)),
		Popularity:   metadataclient.FloatField(data, "popularity", 0),
		OriginalLang: metadataclient.StringField(data, "original_language", ""),
	}
	if ct == models.ContentTV {
		item.Title = metadataclient.StringField(data, "name", "")
		item.OriginalTitle = metadataclient.StringField(data, "original_name", "")
		item.ReleaseDate = metadataclient.StringField(data, "first_air_date", "")
	} else {
		item.Title = metadataclient.StringField(data, "title", "")
		item.OriginalTitle = metadataclient.StringField(data, "original_title", "")
		item.ReleaseDate = metadataclient.StringField(data, "release_date", "")
	}
	if item.Title == "" {
		return models.CatalogueItem{}, false
	}
	return item, true
}

// OptimizeIfLarge switches the backing structure from flat to IVF once N
// exceeds the threshold, preserving the search contract. Returns whether
// a switch happened.
func (idx *Index) OptimizeIfLarge() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.vectors) <= optimizeThreshold {
		return false
	}
	if idx.kind == IndexTypeIVF && idx.ivf != nil {
		return false
	}
	nlist := len(idx.vectors) / 100
	if nlist > maxNlist {
		nlist = maxNlist
	}
	if nlist < 1 {
		nlist = 1
	}
	idx.ivf = buildIVF(idx.vectors, nlist)
	idx.kind = IndexTypeIVF
	return true
}

// ivfIndex clusters vectors into nlist centroids with k-means-lite
// (single pass over random seeds) and restricts search to the nearest
// few clusters, trading a small recall loss for sublinear search cost.
type ivfIndex struct {
	centroids  [][]float32
	clusterOf  []int // per-vector index -> centroid index
	nProbeList int
}

func buildIVF(vectors [][]float32, nlist int) *ivfIndex {
	if nlist > len(vectors) {
		nlist = len(vectors)
	}
	rng := rand.New(rand.NewSource(42))
	centroidIdx := rng.Perm(len(vectors))[:nlist]
	centroids := make([][]float32, nlist)
	for i, vi := range centroidIdx {
		centroids[i] = vectors[vi]
	}

	clusterOf := make([]int, len(vectors))
	for i, v := range vectors {
		best, bestScore := 0, float32(-2)
		for c, centroid := range centroids {
			s := dot(v, centroid)
			if s > bestScore {
				bestScore = s
				best = c
			}
		}
		clusterOf[i] = best
	}

	nProbe := nlist / 8
	if nProbe < 1 {
		nProbe = 1
	}
	return &ivfIndex{centroids: centroids, clusterOf: clusterOf, nProbeList: nProbe}
}

func (ivf *ivfIndex) search(vectors [][]float32, payloads []models.CatalogueItem, query []float32, k int) []Result {
	type scoredCentroid struct {
		idx   int
		score float32
	}
	scored := make([]scoredCentroid, len(ivf.centroids))
	for i, c := range ivf.centroids {
		scored[i] = scoredCentroid{i, dot(query, c)}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	probe := ivf.nProbeList
	if probe > len(scored) {
		probe = len(scored)
	}
	probeSet := make(map[int]struct{}, probe)
	for _, sc := range scored[:probe] {
		probeSet[sc.idx] = struct{}{}
	}

	results := make([]Result, 0, k*4)
	for i, v := range vectors {
		if _, ok := probeSet[ivf.clusterOf[i]]; !ok {
			continue
		}
		results = append(results, Result{Item: payloads[i], Score: dot(v, query)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}
