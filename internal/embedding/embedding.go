// Package embedding turns free text into the fixed-dimension unit vectors
// the vector index and emotional profiles are built from.
package embedding

import (
	"container/list"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/moodreel/core/internal/models"
)

const cacheCapacity = 10_000

// Model is a deterministic hashing-trick text encoder. It is not a real
// transformer — training/shipping one is out of scope — but it satisfies
// the contract every caller actually needs: a stable, L2-normalized,
// fixed-dimension vector per string, with near-duplicate text landing
// close together via shared n-gram hash buckets.
type Model struct {
	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List // front = most recently used
}

type cacheEntry struct {
	key string
	vec []float32
}

func New() *Model {
	return &Model{
		cache: make(map[string]*list.Element, cacheCapacity),
		order: list.New(),
	}
}

// Encode returns a unit vector of dimension EmbeddingDim for text. Empty
// or whitespace-only input returns the zero vector, which callers treat
// as "no embedding".
func (m *Model) Encode(text string) []float32 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, models.EmbeddingDim)
	}

	key := strings.ToLower(trimmed)
	if v, ok := m.lookup(key); ok {
		return v
	}

	v := encodeUncached(key)
	m.store(key, v)
	return v
}

// EncodeBatch processes many strings in one call; each item goes through
// Encode, so the per-item cost and cache locking are the same as Encode's.
func (m *Model) EncodeBatch(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.Encode(t)
	}
	return out
}

func (m *Model) lookup(key string) ([]float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.cache[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return el.Value.(*cacheEntry).vec, true
}

func (m *Model) store(key string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cache[key]; ok {
		return
	}
	el := m.order.PushFront(&cacheEntry{key: key, vec: vec})
	m.cache[key] = el
	if m.order.Len() > cacheCapacity {
		oldest := m.order.Back()
		if oldest != nil {
			m.order.Remove(oldest)
			delete(m.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

func encodeUncached(text string) []float32 {
	v := make([]float32, models.EmbeddingDim)
	tokens := tokenize(text)
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		bucket := int(h.Sum32() % uint32(models.EmbeddingDim))

		sh := fnv.New32a()
		_, _ = sh.Write([]byte("sign:" + tok))
		sign := float32(1)
		if sh.Sum32()%2 == 0 {
			sign = -1
		}
		v[bucket] += sign
	}
	return normalize(v)
}

// tokenize splits on anything that isn't a letter or digit in any script,
// so mood text in non-Latin languages (Chinese, Arabic, Russian, ...)
// still yields tokens instead of silently encoding to the zero vector.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return fields
}

func normalize(v []float32) []float32 {
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
