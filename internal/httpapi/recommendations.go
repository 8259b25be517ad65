package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moodreel/core/internal/apperr"
	"github.com/moodreel/core/internal/middleware"
	"github.com/moodreel/core/internal/models"
	"github.com/moodreel/core/internal/response"
)

type currentEmotionRequest struct {
	Emotion     string             `json:"emotion" binding:"required"`
	ContentType models.ContentType `json:"content_type"`
	Page        int                `json:"page"`
}

func (s *Server) currentEmotion(c *gin.Context) {
	var req currentEmotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	userID := anonymousUserID(c)
	env, err := s.recommend.CurrentEmotion(c.Request.Context(), userID, req.Emotion, req.ContentType, req.Page)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

type hybridRequest struct {
	EmotionText string             `json:"emotion_text" binding:"required"`
	ContentType models.ContentType `json:"content_type"`
}

func (s *Server) hybrid(c *gin.Context) {
	var req hybridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	userID, err := authedUserID(c)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	env, err := s.recommend.Hybrid(c.Request.Context(), userID, req.EmotionText, req.ContentType, page)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

func (s *Server) history(c *gin.Context) {
	userID, err := authedUserID(c)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	ct := models.ContentType(c.Query("content_type"))
	env, err := s.recommend.HistoryBased(c.Request.Context(), userID, ct)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

func (s *Server) profileBased(c *gin.Context) {
	userID, err := authedUserID(c)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	ct := models.ContentType(c.Query("content_type"))
	env, err := s.recommend.ProfileBased(c.Request.Context(), userID, ct)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

type emotionPublicRequest struct {
	Emotion     string             `json:"emotion" binding:"required"`
	ContentType models.ContentType `json:"content_type"`
	Page        int                `json:"page"`
	Exclude     []int64            `json:"exclude"`
}

// emotionPublic serves the anonymous current-emotion variant, with no
// sign-in required and a cached envelope shared across callers.
func (s *Server) emotionPublic(c *gin.Context) {
	var req emotionPublicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	var exclude map[int64]struct{}
	if len(req.Exclude) > 0 {
		exclude = make(map[int64]struct{}, len(req.Exclude))
		for _, id := range req.Exclude {
			exclude[id] = struct{}{}
		}
	}
	env, err := s.recommend.EmotionPublic(c.Request.Context(), req.Emotion, req.ContentType, req.Page, exclude)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

func (s *Server) emotionPublicAll(c *gin.Context) {
	var req emotionPublicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	env, err := s.recommend.EmotionPublicAll(c.Request.Context(), req.Emotion, req.Page)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, env)
}

func (s *Server) bulkPopularContinue(c *gin.Context) {
	ct := models.ContentType(c.DefaultQuery("content_type", string(models.ContentMovie)))
	pages, _ := strconv.Atoi(c.Query("batch_pages"))
	report, err := s.scheduler.PopulateContinue(c.Request.Context(), ct, pages)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, report)
}

// anonymousUserID derives a stable-enough pseudo user id for unauthenticated
// current-emotion calls, where exclusion history simply stays empty.
func anonymousUserID(c *gin.Context) int64 {
	if uid, ok := middleware.UserID(c); ok {
		if n, err := strconv.ParseInt(uid, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func authedUserID(c *gin.Context) (int64, error) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return 0, apperr.Fatal("missing authenticated user", nil)
	}
	n, err := strconv.ParseInt(uid, 10, 64)
	if err != nil {
		return 0, apperr.Fatal("malformed user id claim", err)
	}
	return n, nil
}
