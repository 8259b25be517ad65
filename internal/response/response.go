// Package response renders the JSON envelope every HTTP handler returns.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moodreel/core/internal/apperr"
)

// Response is the standard API envelope.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorInfo carries a machine-readable kind alongside the human message.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		RequestID: c.GetString("request_id"),
	})
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		RequestID: c.GetString("request_id"),
	})
}

// Error writes an error envelope at the given HTTP status.
func Error(c *gin.Context, statusCode int, kind apperr.Kind, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Kind:    string(kind),
			Message: message,
		},
		RequestID: c.GetString("request_id"),
	})
}

// FromErr inspects err for a tagged apperr.Kind and writes the matching
// status code. Errors with no recognized kind render as 500.
func FromErr(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindNotFound:
		Error(c, http.StatusNotFound, kind, err.Error())
	case apperr.KindConflict, apperr.KindRoomAlreadyStarted:
		Error(c, http.StatusConflict, kind, err.Error())
	case apperr.KindRoomFull, apperr.KindInvalidRoomAction:
		Error(c, http.StatusUnprocessableEntity, kind, err.Error())
	case apperr.KindNoProfile:
		Error(c, http.StatusOK, kind, err.Error())
	case apperr.KindTransient:
		Error(c, http.StatusServiceUnavailable, kind, err.Error())
	case apperr.KindFatal:
		Error(c, http.StatusInternalServerError, kind, err.Error())
	default:
		Error(c, http.StatusInternalServerError, apperr.KindFatal, err.Error())
	}
}

// BadRequest returns a 400 Bad Request response.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// Unauthorized returns a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}