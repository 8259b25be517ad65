// Package httpapi wires the gin routes for recommendations, rooms and the
// room voting WebSocket onto the domain engines.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moodreel/core/internal/config"
	"github.com/moodreel/core/internal/metadataclient"
	"github.com/moodreel/core/internal/middleware"
	"github.com/moodreel/core/internal/recommend"
	"github.com/moodreel/core/internal/rooms"
	"github.com/moodreel/core/internal/scheduler"
	"github.com/moodreel/core/internal/store"
	"github.com/moodreel/core/internal/wshub"
)

// Server holds every domain engine the HTTP and WebSocket surfaces need.
type Server struct {
	cfg       *config.Config
	log       *zap.Logger
	recommend *recommend.Engine
	rooms     *rooms.Engine
	scheduler *scheduler.Scheduler
	watchlist *store.WatchlistStore
	metadata  *metadataclient.Client
	hub       *wshub.Hub
	ws        *wshub.Handler
}

func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	rec *recommend.Engine,
	roomEngine *rooms.Engine,
	sched *scheduler.Scheduler,
	watchlist *store.WatchlistStore,
	meta *metadataclient.Client,
	hub *wshub.Hub,
) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		recommend: rec,
		rooms:     roomEngine,
		scheduler: sched,
		watchlist: watchlist,
		metadata:  meta,
		hub:       hub,
	}
	adapter := newRoomAdapter(roomEngine, hub)
	s.ws = wshub.NewHandler(hub, log, adapter, adapter)
	return s
}

// RegisterRoutes mounts every route onto r, mirroring the teacher's
// SetupXRoutes convention of one function per resource group.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	r.Use(
		middleware.RequestID(),
		middleware.Logger(s.log),
		middleware.CORS(s.cfg.AllowedOrigins),
		middleware.Recovery(s.log),
		middleware.Timeout(timeout),
	)

	auth := middleware.Auth(s.cfg.JWTSecret, s.cfg.DevSkipSignature)

	recGroup := r.Group("/recommendations")
	{
		recGroup.POST("/current-emotion", s.currentEmotion)
		recGroup.POST("/hybrid", auth, s.hybrid)
		recGroup.POST("/history", auth, s.history)
		recGroup.POST("/profile-based", auth, s.profileBased)
		recGroup.POST("/emotion-public", s.emotionPublic)
		recGroup.POST("/emotion-public/all", s.emotionPublicAll)
		recGroup.POST("/admin/embedding/bulk-popular/continue", s.bulkPopularContinue)
	}

	roomGroup := r.Group("/rooms")
	{
		roomGroup.POST("", s.createRoom)
		roomGroup.GET("/:code", s.getRoom)
		roomGroup.GET("/:code/ws", s.ws.Serve())
	}

	watchlistGroup := r.Group("/watchlist", auth)
	{
		watchlistGroup.POST("", s.addWatchlistEntry)
		watchlistGroup.PATCH("/status", s.updateWatchlistStatus)
		watchlistGroup.GET("", s.listWatchlist)
	}

	catalogueGroup := r.Group("/catalogue")
	{
		catalogueGroup.GET("/search", s.searchCatalogue)
		catalogueGroup.GET("/discover", s.discoverCatalogue)
		catalogueGroup.GET("/:content_type/:id/credits", s.catalogueCredits)
		catalogueGroup.GET("/:content_type/:id/watch-providers", s.catalogueWatchProviders)
		catalogueGroup.GET("/:content_type/:id/recommendations", s.catalogueRecommendations)
	}
}

// DefaultRequestTimeout is the teacher-style fallback applied when
// config didn't set one explicitly.
const DefaultRequestTimeout = 30 * time.Second
