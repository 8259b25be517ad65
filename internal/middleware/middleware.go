// Package middleware holds the gin middleware chain wired into every route:
// request id, structured logging, CORS, panic recovery, timeout and auth.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moodreel/core/internal/response"
)

// RequestID assigns (or propagates) an X-Request-Id and stores it in the
// gin context under "request_id" for response.Success/Error to read back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}

// Logger logs each request at Info level with method, path, status,
// latency and request id once the handler chain has finished.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		log.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

// CORS allows the configured origin list (or "*" when none is configured).
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		default:
			if _, ok := allowed[origin]; ok {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Vary", "Origin")
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Recovery converts a panic in any downstream handler into a 500 envelope
// instead of crashing the server, and logs the panic value.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic_recovered",
					zap.Any("panic", r),
					zap.String("request_id", c.GetString("request_id")),
				)
				response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// Timeout bounds the request context so handlers calling out to the
// metadata service, cache or database don't hang past budget.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

const ctxUserID = "user_id"

// Auth resolves the bearer token from Authorization into a user id and
// stores it in the context. Token issuance itself is an external
// collaborator's concern (spec Non-goal); this middleware only verifies
// and extracts the subject claim. When devSkipSignature is set (local
// development), the token is parsed without verifying its signature,
// whatever the configured secret.
func Auth(secret string, devSkipSignature bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		if devSkipSignature {
			claims := jwt.MapClaims{}
			parser := jwt.NewParser()
			if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
				response.Unauthorized(c, "invalid token")
				c.Abort()
				return
			}
			setUserFromClaims(c, claims)
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.Unauthorized(c, "invalid token claims")
			c.Abort()
			return
		}
		setUserFromClaims(c, claims)
	}
}

func setUserFromClaims(c *gin.Context, claims jwt.MapClaims) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		response.Unauthorized(c, "token missing subject")
		c.Abort()
		return
	}
	c.Set(ctxUserID, sub)
	c.Next()
}

// UserID reads the authenticated user id set by Auth.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
