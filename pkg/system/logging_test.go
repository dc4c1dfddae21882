package system

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetReqLoggerFallbackWhenContextNil(t *testing.T) {
	fallback := zap.NewNop().Sugar()
	require.Same(t, fallback, GetReqLogger(nil, fallback))
}

func TestGetReqLoggerFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	stored := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, stored)
	require.Same(t, stored, GetReqLogger(ctx, fallback))
}

func TestGetReqLoggerIgnoresInvalidTypes(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, "not-a-logger")
	require.Same(t, fallback, GetReqLogger(ctx, fallback))
}

func TestRequestLoggerAttachesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, recorded := observer.New(zap.DebugLevel)
	base := zap.New(core).Sugar()

	router := gin.New()
	router.Use(RequestLogger(base))
	router.GET("/test", func(c *gin.Context) {
		GetReqLogger(c, base).Infow("handled")
		c.Status(200)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	entries := recorded.All()
	require.Len(t, entries, 1)
	require.NotEmpty(t, entries[0].ContextMap()["requestId"])
}

func TestEscalationFields(t *testing.T) {
	require.Equal(t, []interface{}{"escalation", "e-1", "conversation", "conv-1"}, EscalationFields("e-1", "conv-1"))
	require.Equal(t, []interface{}{"escalation", "e-1"}, EscalationFields("e-1", ""))
}
