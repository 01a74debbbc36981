package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SUBRATAxTL/ai-threat-model-app/internal/application"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/application/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/config"
	domain "github.com/SUBRATAxTL/ai-threat-model-app/internal/domain/threatmodel"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/ai/openai"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/httpserver"
	minioStore "github.com/SUBRATAxTL/ai-threat-model-app/internal/infra/storage"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/logging"
	"github.com/SUBRATAxTL/ai-threat-model-app/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}
	log := logging.New(cfg.Logging)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limits := domain.Limits{
		MaxArtifactBytes: cfg.Analysis.MaxArtifactBytes,
		MaxArtifacts:     cfg.Analysis.MaxArtifacts,
	}

	client := openai.NewClient(openai.Options{
		APIKey:         cfg.Reasoning.APIKey,
		BaseURL:        cfg.Reasoning.BaseURL,
		Model:          cfg.Reasoning.Model,
		MaxTokens:      cfg.Reasoning.MaxTokens,
		RequestTimeout: cfg.Reasoning.RequestTimeout,
		Log:            log,
	})
	svc := threatmodel.NewService(client,
		threatmodel.WithLogger(log),
		threatmodel.WithSecretRedaction(cfg.Analysis.RedactSecrets),
	)

	deps := httpserver.Deps{
		Analyzer:       svc,
		Limits:         limits,
		Clock:          application.SystemClock{},
		Metrics:        middleware.NewMetrics(),
		Checkers:       map[string]middleware.HealthChecker{},
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Log:            log,
	}

	// optional bucket artifact source
	if cfg.Minio.Enabled() {
		store, err := minioStore.New(ctx, cfg.Minio, limits, log)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		deps.Source = store
		deps.Checkers[store.Name()] = middleware.CheckerFunc(store.Ping)
	}

	if cfg.RateLimit.Capacity > 0 {
		rl := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
		go rl.Run(ctx)
		deps.RateLimiter = rl
	}

	// WriteTimeout covers a full analysis including every retry.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpserver.NewRouter(deps),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.Reasoning.RequestTimeout*5 + time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.Addr(), "model": cfg.Reasoning.Model}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}
