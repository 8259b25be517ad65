// Package scheduler runs the daily catalogue ingestion jobs: paging
// through the metadata provider's popular feed into the vector index and
// content store, and pre-warming the public detail+similar cache.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/moodreel/core/internal/cache"
	"github.com/moodreel/core/internal/embedding"
	"github.com/moodreel/core/internal/metadataclient"
	"github.com/moodreel/core/internal/models"
	"github.com/moodreel/core/internal/recommend"
	"github.com/moodreel/core/internal/store"
	"github.com/moodreel/core/internal/vectorindex"
)

const (
	ingestionFloor = 6.0
	cursorTTL      = 7 * 24 * time.Hour
	prewarmTTL     = 24 * time.Hour
)

// Scheduler owns the cron runner and the subsystems its jobs touch.
type Scheduler struct {
	cron *cronlib.Cron
	log  *zap.Logger

	meta      *metadataclient.Client
	index     *vectorindex.Index
	content   *store.ContentStore
	embed     *embedding.Model
	cache     *cache.Cache
	recommend *recommend.Engine

	movieBatchPages int
	tvBatchPages    int
}

func New(
	log *zap.Logger,
	meta *metadataclient.Client,
	index *vectorindex.Index,
	content *store.ContentStore,
	embed *embedding.Model,
	c *cache.Cache,
	rec *recommend.Engine,
	movieBatchPages, tvBatchPages int,
) *Scheduler {
	return &Scheduler{
		cron:            cronlib.New(cronlib.WithLocation(time.UTC)),
		log:             log,
		meta:            meta,
		index:           index,
		content:         content,
		embed:           embed,
		cache:           c,
		recommend:       rec,
		movieBatchPages: movieBatchPages,
		tvBatchPages:    tvBatchPages,
	}
}

// Start registers the daily jobs at hour:minute UTC and starts the runner.
func (s *Scheduler) Start(hour, minute int) error {
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := s.cron.AddFunc(spec, func() { s.runIngestCycle(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop drains in-flight jobs and halts the runner.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runIngestCycle(ctx context.Context) {
	for _, ct := range []models.ContentType{models.ContentMovie, models.ContentTV} {
		pages := s.movieBatchPages
		if ct == models.ContentTV {
			pages = s.tvBatchPages
		}
		if _, err := s.PopulateContinue(ctx, ct, pages); err != nil {
			s.log.Error("populate_continue failed", zap.String("content_type", string(ct)), zap.Error(err))
		}
		if err := s.prewarmPopular(ctx, ct); err != nil {
			s.log.Error("prewarm_popular failed", zap.String("content_type", string(ct)), zap.Error(err))
		}
	}
	if s.index.OptimizeIfLarge() {
		if err := s.index.Persist(); err != nil {
			s.log.Error("index persist after optimize failed", zap.Error(err))
		}
	}
}

func cursorKey(ct models.ContentType) string {
	return fmt.Sprintf("tmdb:ingest:popular:%s:last_page", ct)
}

// Report summarizes one PopulateContinue run.
type Report struct {
	ContentType models.ContentType `json:"content_type"`
	FromPage    int                `json:"from_page"`
	ToPage      int                `json:"to_page"`
	Ingested    int                `json:"ingested"`
}

// PopulateContinue pages through the provider's popular feed starting
// from the cursor left by the previous run, ingesting up to maxPages
// pages of eligible items and advancing the cursor idempotently. Exported
// so the admin HTTP surface can trigger a manual ingestion batch.
func (s *Scheduler) PopulateContinue(ctx context.Context, ct models.ContentType, maxPages int) (Report, error) {
	if maxPages <= 0 {
		maxPages = 1
	}

	startPage := 1
	var cursor string
	if s.cache.GetJSON(ctx, cursorKey(ct), &cursor) {
		if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
			startPage = n + 1
		}
	}

	ingested := 0
	lastPage := startPage - 1
	for page := startPage; page < startPage+maxPages; page++ {
		env, err := s.meta.Popular(ctx, string(ct), page)
		if err != nil {
			break
		}
		if !env.Success {
			break
		}
		results, _ := env.Data["results"].([]interface{})
		if len(results) == 0 {
			break
		}
		for _, raw := range results {
			item, ok := decodeCatalogueItem(raw, ct)
			if !ok || item.VoteAverage < ingestionFloor {
				continue
			}
			item.Embedding = s.embed.Encode(item.Title + " " + item.Overview)
			if err := s.content.Upsert(ctx, &item); err != nil {
				continue
			}
			s.index.Add(item)
			ingested++
		}
		lastPage = page
	}

	if lastPage >= startPage {
		s.cache.SetJSON(ctx, cursorKey(ct), strconv.Itoa(lastPage), cursorTTL)
	}
	s.log.Info("populate_continue finished",
		zap.String("content_type", string(ct)),
		zap.Int("from_page", startPage),
		zap.Int("to_page", lastPage),
		zap.Int("ingested", ingested))
	return Report{ContentType: ct, FromPage: startPage, ToPage: lastPage, Ingested: ingested}, nil
}

func prewarmKey(ct models.ContentType, tmdbID int64) string {
	return fmt.Sprintf("tmdb:%s:%d:details_similar_public", ct, tmdbID)
}

// prewarmPopular caches {detail, similar} envelopes for the current
// popular page-one titles under prewarmKey. No read path in this module
// looks those keys up.
func (s *Scheduler) prewarmPopular(ctx context.Context, ct models.ContentType) error {
	env, err := s.meta.Popular(ctx, string(ct), 1)
	if err != nil || !env.Success {
		return err
	}
	results, _ := env.Data["results"].([]interface{})
	for _, raw := range results {
		item, ok := decodeCatalogueItem(raw, ct)
		if !ok {
			continue
		}
		detail, err := s.meta.Details(ctx, string(ct), item.TMDBID)
		if err != nil {
			continue
		}
		similar, err := s.recommend.EmotionPublic(ctx, item.Overview, ct, 1, map[int64]struct{}{item.TMDBID: {}})
		if err != nil {
			continue
		}
		payload := map[string]interface{}{"detail": detail.Data, "similar": similar}
		s.cache.SetJSON(ctx, prewarmKey(ct, item.TMDBID), payload, prewarmTTL)
	}
	return nil
}

func decodeCatalogueItem(raw interface{}, ct models.ContentType) (models.CatalogueItem, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return models.CatalogueItem{}, false
	}
	id, ok := asInt64(m["id"])
	if !ok {
		return models.CatalogueItem{}, false
	}
	item := models.CatalogueItem{
		TMDBID:      id,
		ContentType: ct,
		VoteAverage: asFloat(m["vote_average"]),
		VoteCount:   int(asFloat(m["vote_count"])),
		Popularity:  asFloat(m["popularity"]),
		OriginalLang: asString(m["original_language"]),
		Overview:    asString(m["overview"]),
		PosterPath:  asString(m["poster_path"]),
		BackdropPath: asString(m["backdrop_path"]),
	}
	if ct == models.ContentTV {
		item.Title = asString(m["name"])
		item.OriginalTitle = asString(m["original_name"])
		item.ReleaseDate = asString(m["first_air_date"])
	} else {
		item.Title = asString(m["title"])
		item.OriginalTitle = asString(m["original_title"])
		item.ReleaseDate = asString(m["release_date"])
	}
	return item, true
}

func asInt64(v interface{}) (int64, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
