package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"helpinghands_backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRecovery_RendersEnvelope(t *testing.T) {
	var logs bytes.Buffer
	logger.InitWithWriter("test", &logs)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), Recovery(), LoggingMiddleware())
	r.GET("/boom", func(c *gin.Context) { panic("secret-internal-state") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, w.Body.String(), "secret-internal-state")
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestLoggingMiddleware_SkipsHealth(t *testing.T) {
	var logs bytes.Buffer
	logger.InitWithWriter("test", &logs)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggingMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, logs.String())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Contains(t, logs.String(), "HTTP Client Error")
	assert.Contains(t, logs.String(), "/x")
}
