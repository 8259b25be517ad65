package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/moodreel/core/internal/models"
	"github.com/moodreel/core/internal/response"
)

type addWatchlistRequest struct {
	TMDBID              int64              `json:"tmdb_id" binding:"required"`
	ContentType         models.ContentType `json:"content_type" binding:"required"`
	FromRecommendation  bool               `json:"from_recommendation"`
	RecommendationType  string             `json:"recommendation_type"`
	RecommendationScore float64            `json:"recommendation_score"`
}

func (s *Server) addWatchlistEntry(c *gin.Context) {
	var req addWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	userID, err := authedUserID(c)
	if err != nil {
		response.FromErr(c, err)
		return
	}

	entry := &models.WatchlistEntry{
		UserID:              userID,
		TMDBID:              req.TMDBID,
		ContentType:         req.ContentType,
		FromRecommendation:  req.FromRecommendation,
		RecommendationType:  req.RecommendationType,
		RecommendationScore: req.RecommendationScore,
	}
	if err := s.watchlist.Add(c.Request.Context(), entry); err != nil {
		response.FromErr(c, err)
		return
	}
	response.Created(c, entry)
}

type updateWatchlistStatusRequest struct {
	TMDBID      int64                  `json:"tmdb_id" binding:"required"`
	ContentType models.ContentType     `json:"content_type" binding:"required"`
	Status      models.WatchlistStatus `json:"status" binding:"required"`
}

func (s *Server) updateWatchlistStatus(c *gin.Context) {
	var req updateWatchlistStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	userID, err := authedUserID(c)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	if err := s.watchlist.UpdateStatus(c.Request.Context(), userID, req.TMDBID, req.ContentType, req.Status); err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, gin.H{"updated": true})
}

func (s *Server) listWatchlist(c *gin.Context) {
	userID, err := authedUserID(c)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	rows, err := s.watchlist.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, gin.H{"entries": rows, "total": len(rows)})
}
