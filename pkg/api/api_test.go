package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{}
	cfg.Defaults()
	cfg.Frontend.StaticDir = t.TempDir()
	return cfg
}

type stubController struct {
	base       string
	registered bool
	failWith   error
}

func (s *stubController) BasePath() string { return s.base }

func (s *stubController) Register(rg *gin.RouterGroup) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.registered = true
	rg.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return nil
}

func (s *stubController) Handlers() []gin.HandlerFunc { return nil }

func TestServerRegisterAll(t *testing.T) {
	srv := NewServer(zap.NewNop(), testConfig(t), false)

	ctrl := &stubController{base: "stub/"}
	require.NoError(t, srv.RegisterAll([]APIController{ctrl}))
	assert.True(t, ctrl.registered)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stub/ping", nil)
	srv.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestServerHealthz(t *testing.T) {
	srv := NewServer(zap.NewNop(), testConfig(t), false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body healthzResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Version)
}

func TestServerFrontendConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Frontend.BrandingName = "Handoff Desk"

	srv := NewServer(zap.NewNop(), cfg, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body FrontendConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Handoff Desk", body.BrandingName)
	assert.Equal(t, config.DefaultCategories, body.Categories)
	assert.Equal(t, "user_request", body.DefaultCategory)
	assert.Equal(t, "medium", body.DefaultUrgency)
}

func TestServerMetricsEndpoint(t *testing.T) {
	srv := NewServer(zap.NewNop(), testConfig(t), false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "handoff_")
}
