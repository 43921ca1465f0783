package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-substitution-api/pkg/middleware/requestid"
)

func TestGinMiddlewareTagsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	var scoped string
	r := gin.New()
	r.Use(requestid.Middleware(), GinMiddleware(l))
	r.GET("/plans/:id", func(c *gin.Context) {
		WithRequest(c.Request.Context(), l).Info("plan fetched")
		scoped = requestid.FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/plans/p1", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", scoped)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "plan fetched", entries[0].Message)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "http_request", entries[1].Message)
	assert.Equal(t, "/plans/:id", entries[1].ContextMap()["route"])
}

func TestWithRequestWithoutID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithRequest(context.Background(), zap.New(core)).Info("startup")

	require.Equal(t, 1, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "request_id")
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, requestid.Value(c)) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Len(t, rec.Body.String(), 36)
	assert.Equal(t, rec.Body.String(), rec.Header().Get("X-Request-ID"))
}
