package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/moodreel/core/internal/models"
	"github.com/moodreel/core/internal/response"
)

type createRoomRequest struct {
	ContentType       models.ContentType `json:"content_type"`
	MaxParticipants   int                `json:"max_participants"`
	DurationMinutes   int                `json:"duration_minutes"`
	CreatorSessionID  string             `json:"creator_session_id" binding:"required"`
}

func (s *Server) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if req.MaxParticipants <= 0 {
		req.MaxParticipants = 8
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 15
	}

	room, err := s.rooms.Create(c.Request.Context(), req.CreatorSessionID, req.ContentType, req.DurationMinutes, req.MaxParticipants)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Created(c, room)
}

func (s *Server) getRoom(c *gin.Context) {
	code := c.Param("code")
	room, err := s.rooms.GetByCode(c.Request.Context(), code)
	if err != nil {
		response.FromErr(c, err)
		return
	}
	response.Success(c, room)
}
