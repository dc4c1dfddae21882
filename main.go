package main

import (
	"context"
	"flag"
	stdlog "log"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gin-gonic/gin"

	"github.com/handoff-sh/handoff/pkg/api"
	"github.com/handoff-sh/handoff/pkg/audit"
	"github.com/handoff-sh/handoff/pkg/broker"
	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/mail"
	"github.com/handoff-sh/handoff/pkg/ratelimit"
	"github.com/handoff-sh/handoff/pkg/telemetry"
	"github.com/handoff-sh/handoff/pkg/version"
)

func main() {
	debug := false
	flag.BoolVar(&debug, "debug", false, "enable debug level logging")
	flag.Parse()

	zl := setupLogger(debug)
	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting handoff broker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading handoff config: %v", err)
	}
	cfg.Defaults()

	if debug {
		log.Infof("%#v", cfg)
	}

	_, telemetryShutdown, err := telemetry.Init(context.Background(), telemetry.Options{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "handoff",
		ServiceVersion: version.Version,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		Logger:         log,
	})
	if err != nil {
		log.Fatalf("Error initializing tracing: %v", err)
	}

	auditService, err := audit.NewService(zl, cfg.Audit)
	if err != nil {
		log.Fatalf("Error creating audit service: %v", err)
	}

	mailService := mail.NewService(log, cfg)

	brokerOpts := []broker.Option{broker.WithAuditor(auditService)}
	if mailService != nil {
		brokerOpts = append(brokerOpts, broker.WithNotifier(mailService))
	}
	b := broker.New(log, cfg.Broker, brokerOpts...)

	var middleware []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		limiterCfg := ratelimit.DefaultAPIConfig()
		limiterCfg.Rate = cfg.RateLimit.Rate
		limiterCfg.Burst = cfg.RateLimit.Burst
		limiter := ratelimit.New(limiterCfg)
		defer limiter.Stop()
		middleware = append(middleware, limiter.Middleware())
		log.Infow("API rate limiting enabled", "rate", limiterCfg.Rate, "burst", limiterCfg.Burst)
	}

	server := api.NewServer(zl, cfg, debug)
	err = server.RegisterAll([]api.APIController{
		broker.NewEscalationController(log, b, middleware...),
	})
	if err != nil {
		log.Fatalf("Error registering escalation controller: %v", err)
	}

	auditService.Startup(context.Background(), cfg.Server.ListenAddress)

	server.Listen()

	// Run/RunTLS only return on listener failure; drain best-effort.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	b.Shutdown()
	if err := mailService.Stop(shutdownCtx); err != nil {
		log.Warnw("Mail queue did not drain", "error", err)
	}
	if err := auditService.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Audit trail did not drain", "error", err)
	}
	if err := telemetryShutdown(shutdownCtx); err != nil {
		log.Warnw("Tracer provider did not flush", "error", err)
	}
}

func setupLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
