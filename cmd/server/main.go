package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/moodreel/core/internal/cache"
	"github.com/moodreel/core/internal/config"
	"github.com/moodreel/core/internal/embedding"
	"github.com/moodreel/core/internal/emotion"
	"github.com/moodreel/core/internal/httpapi"
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

func main() {
	loaded := config.Load()
	cfg := &loaded

	logger, err := newLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&models.CatalogueItem{},
		&models.UserRating{},
		&models.WatchlistEntry{},
		&models.UserEmotionalProfile{},
		&models.RecommendationLog{},
		&models.Room{},
		&models.RoomParticipant{},
		&models.RoomInteraction{},
		&models.RoomMatch{},
	); err != nil {
		logger.Fatal("failed to auto-migrate schema", zap.Error(err))
	}

	ctx := context.Background()
	redisCache, err := cache.New(ctx, cfg.CacheURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to cache", zap.Error(err))
	}
	defer redisCache.Close()

	contentStore := store.NewContentStore(db)
	ratingStore := store.NewRatingStore(db)
	profileStore := store.NewProfileStore(db)
	reclogStore := store.NewRecommendationLogStore(db)
	roomStore := store.NewRoomStore(db)
	watchlistStore := store.NewWatchlistStore(db)

	embed := embedding.New()
	meta := metadataclient.New(cfg.MetadataBaseURL, cfg.MetadataAPIKey, logger)

	index := vectorindex.New(cfg.IndexDir, meta, embed)
	index.Load()
	if index.Len() == 0 {
		warmIndexFromStore(ctx, logger, index, contentStore)
	}

	notif := notifier.NewLoggingNotifier(logger)

	emotionAnalyzer := emotion.New(embed, index, contentStore, profileStore, notif)
	recommendEngine := recommend.New(embed, index, emotionAnalyzer, ratingStore, profileStore, reclogStore, meta, redisCache)
	roomsEngine := rooms.New(roomStore, index, embed, notif)

	hub := wshub.NewHub(logger)
	go hub.Run()

	sched := scheduler.New(logger, meta, index, contentStore, embed, redisCache, recommendEngine, cfg.ScheduleMovieBatchPages, cfg.ScheduleTVBatchPages)
	if cfg.EnableScheduler {
		if err := sched.Start(cfg.ScheduleHour, cfg.ScheduleMinute); err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
	}

	server := httpapi.NewServer(cfg, logger, recommendEngine, roomsEngine, sched, watchlistStore, meta, hub)

	gin.SetMode(ginMode(cfg.Env))
	router := gin.New()
	server.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.EnableScheduler {
		sched.Stop()
	}
	if err := index.Persist(); err != nil {
		logger.Error("failed to persist vector index", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func newLogger(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	return cfg.Build()
}

func ginMode(env string) string {
	if env == "production" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}

// warmIndexFromStore rebuilds the in-memory vector index from Postgres
// when the persisted index files are absent or corrupt (Load leaves the
// index empty in that case).
func warmIndexFromStore(ctx context.Context, logger *zap.Logger, index *vectorindex.Index, contentStore *store.ContentStore) {
	items, err := contentStore.ListAllEligible(ctx)
	if err != nil {
		logger.Error("failed to warm vector index from store", zap.Error(err))
		return
	}
	for _, item := range items {
		index.Add(item)
	}
	index.OptimizeIfLarge()
	logger.Info("warmed vector index from store", zap.Int("items", len(items)))
}
