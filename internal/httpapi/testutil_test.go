package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/moodreel/core/internal/cache"
	"github.com/moodreel/core/internal/config"
	"github.com/moodreel/core/internal/embedding"
	"github.com/moodreel/core/internal/emotion"
	"github.com/moodreel/core/internal/metadataclient"
	"github.com/moodreel/core/internal/models"
	"github.com/moodreel/core/internal/notifier"
	"github.com/moodreel/core/internal/recommend"
	"github.com/moodreel/core/internal/rooms"
	"github.com/moodreel/core/internal/scheduler"
	"github.com/moodreel/core/internal/store"
	"github.com/moodreel/core/internal/vectorindex"
	"github.com/moodreel/core/internal/wshub"
)

// newFakeMetadataServer serves Details responses for the given titles
// (keyed by tmdb id), so recommendation enrichment's live fetch has
// something to hit across the httpapi test suite.
func newFakeMetadataServer(t *testing.T, titles []models.CatalogueItem) *httptest.Server {
	t.Helper()
	byID := make(map[int64]models.CatalogueItem, len(titles))
	for _, it := range titles {
		byID[it.TMDBID] = it
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		item, ok := byID[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            item.TMDBID,
			"title":         item.Title,
			"name":          item.Title,
			"overview":      item.Overview,
			"poster_path":   item.PosterPath,
			"backdrop_path": item.BackdropPath,
			"release_date":  item.ReleaseDate,
			"vote_average":  item.VoteAverage,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testHarness struct {
	router  *gin.Engine
	content *store.ContentStore
	embed   *embedding.Model
	index   *vectorindex.Index
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	return newTestHarnessWithMetaURL(t, "")
}

// newTestHarnessUnreachableMeta points the metadata client at a URL
// nothing answers on, for tests asserting the circuit-breaker/transient
// degradation path rather than a real passthrough response.
func newTestHarnessUnreachableMeta(t *testing.T) *testHarness {
	t.Helper()
	return newTestHarnessWithMetaURL(t, "http://127.0.0.1:1")
}

func newTestHarnessWithMetaURL(t *testing.T, metaURL string) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.CatalogueItem{}, &models.UserRating{}, &models.UserEmotionalProfile{},
		&models.RecommendationLog{}, &models.Room{}, &models.RoomParticipant{},
		&models.RoomInteraction{}, &models.RoomMatch{}, &models.WatchlistEntry{},
	))

	content := store.NewContentStore(db)
	ratings := store.NewRatingStore(db)
	profiles := store.NewProfileStore(db)
	reclog := store.NewRecommendationLogStore(db)
	roomStore := store.NewRoomStore(db)
	watchlistStore := store.NewWatchlistStore(db)

	embed := embedding.New()
	log := zap.NewNop()

	titleNames := []string{"a cozy slow-burn romance", "a terrifying cosmic horror", "an uplifting underdog sports story"}
	items := make([]models.CatalogueItem, len(titleNames))
	for i, title := range titleNames {
		items[i] = models.CatalogueItem{
			TMDBID:      int64(i + 1),
			ContentType: models.ContentMovie,
			Title:       title,
			Overview:    title,
			VoteAverage: 7.5,
			Embedding:   embed.Encode(title),
		}
	}
	if metaURL == "" {
		metaURL = newFakeMetadataServer(t, items).URL
	}
	meta := metadataclient.New(metaURL, "test-key", log)
	index := vectorindex.New(t.TempDir(), meta, embed)
	notif := notifier.NewLoggingNotifier(log)
	emo := emotion.New(embed, index, content, profiles, notif)
	redisDB, _ := redismock.NewClientMock()
	ch := cache.NewForTest(redisDB, log)

	recEngine := recommend.New(embed, index, emo, ratings, profiles, reclog, meta, ch)
	roomEngine := rooms.New(roomStore, index, embed, notif)
	sched := scheduler.New(log, meta, index, content, embed, ch, recEngine, 1, 1)
	hub := wshub.NewHub(log)

	cfg := &config.Config{
		AllowedOrigins:   nil,
		JWTSecret:        "test-secret",
		DevSkipSignature: true,
		RequestTimeout:   DefaultRequestTimeout,
	}

	srv := NewServer(cfg, log, recEngine, roomEngine, sched, watchlistStore, meta, hub)
	r := gin.New()
	srv.RegisterRoutes(r)

	for _, item := range items {
		item := item
		require.NoError(t, content.Upsert(context.Background(), &item))
		index.Add(item)
	}

	return &testHarness{router: r, content: content, embed: embed, index: index}
}

func (h *testHarness) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

// devToken mints an unverified (dev-skip-signature) JWT carrying sub=userID.
func devToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": userID})
	signed, err := token.SignedString([]byte("unused"))
	require.NoError(t, err)
	return signed
}

func authHeader(t *testing.T, userID string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + devToken(t, userID)}
}
