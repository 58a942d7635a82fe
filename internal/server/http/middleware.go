package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/biokeeper/internal/server/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxUserID       = "auth_user_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(ctxRequestID),
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			s.logger.Error(ctx, "HTTP request", fields...)
		case status >= 400:
			s.logger.Warn(ctx, "HTTP request", fields...)
		default:
			s.logger.Info(ctx, "HTTP request", fields...)
		}
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, p any) {
		s.logger.Error(c.Request.Context(), "panic in handler", "path", c.Request.URL.Path, "panic", p)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Code: codeInternal, Message: "internal error"})
	})
}

// requireAuth accepts "Authorization: Bearer <jwt>" and stores the token
// subject for handlers to compare with the submitted user_id.
func (s *Server) requireAuth() gin.HandlerFunc {
	secret := []byte(s.opts.JWTSecret)
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if len(h) <= 7 || !strings.EqualFold(h[:7], "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Code: codeUnauthorized, Message: "missing or invalid token"})
			return
		}
		userID, err := auth.GetUserIDFromToken(strings.TrimSpace(h[7:]), secret)
		if err != nil {
			s.logger.Warn(c.Request.Context(), "access token rejected", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Code: codeUnauthorized, Message: "missing or invalid token"})
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}
