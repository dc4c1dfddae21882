package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/metrics"
	"github.com/handoff-sh/handoff/pkg/system"
	"github.com/handoff-sh/handoff/pkg/version"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

type Server struct {
	gin    *gin.Engine
	config config.Config
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		system.RequestLogger(log.Sugar()),
	)

	if len(cfg.Server.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(cfg.Server.TrustedProxies)
	}

	engine.NoRoute(ServeSPA("/", cfg.Frontend.StaticDir))

	if debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "127.0.0.1:8080"},
				AllowMethods: []string{"GET", "PUT", "PATCH", "POST", "DELETE", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:    engine,
		config: cfg,
	}

	engine.GET("healthz", s.getHealthz)
	engine.GET("metrics", gin.WrapH(metrics.MetricsHandler()))
	engine.GET("api/config", s.getConfig)

	return s
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) Listen() {
	if s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != "" {
		_ = s.gin.RunTLS(s.config.Server.ListenAddress, s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
		return
	}
	_ = s.gin.Run(s.config.Server.ListenAddress)
}

// Engine exposes the underlying engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.gin
}

// FrontendConfig is the bootstrap payload the operator console fetches before
// rendering: the recognized decision categories drive its filter controls.
type FrontendConfig struct {
	BrandingName    string   `json:"brandingName,omitempty"`
	Categories      []string `json:"categories"`
	DefaultCategory string   `json:"defaultCategory"`
	DefaultUrgency  string   `json:"defaultUrgency"`
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, FrontendConfig{
		BrandingName:    s.config.Frontend.BrandingName,
		Categories:      s.config.Broker.Categories,
		DefaultCategory: s.config.Broker.DefaultCategory,
		DefaultUrgency:  s.config.Broker.DefaultUrgency,
	})
}

type healthzResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) getHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, healthzResponse{Status: "ok", Version: version.Version})
}
