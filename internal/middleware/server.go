package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"helpinghands_backend/internal/logger"
	"helpinghands_backend/pkg/apperrors"
	"helpinghands_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware сохраняет сквозной id от балансировщика, иначе генерирует новый
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// LoggingMiddleware пишет одну строку на запрос. /health не логируется.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []any{
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.Int("size_bytes", c.Writer.Size()),
			slog.String("client_ip", c.ClientIP()),
		}
		if userID := c.GetString(contextkeys.UserIDKey); userID != "" {
			fields = append(fields, slog.String("user_id", userID))
		}

		log := logger.FromContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Error("HTTP Server Error", fields...)
		case status >= 400:
			log.Warn("HTTP Client Error", fields...)
		default:
			log.Info("HTTP Request", fields...)
		}
	}
}

// Recovery превращает панику хэндлера в 500 с обычным конвертом ошибки
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(c.Request.Context()).Error("panic recovered",
					"panic", fmt.Sprint(r),
					"path", c.Request.URL.Path,
				)
				apperrors.HandleError(c, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
	}
}

// DBMiddleware кладет *gorm.DB в gin.Context; хэндлеры достают его через BaseHandler.GetDB
func DBMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(contextkeys.DBContextKey), db.WithContext(c.Request.Context()))
		c.Next()
	}
}
