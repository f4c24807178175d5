package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "listing_price/internal/adapters/http_server"
	"listing_price/internal/adapters/model"
	"listing_price/internal/adapters/modelserver"
	"listing_price/internal/adapters/observability"
	redisad "listing_price/internal/adapters/redis"
	"listing_price/internal/app"
	"listing_price/internal/config"
	"listing_price/internal/domain"
	"listing_price/internal/pipeline"
	"listing_price/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "api")
	cfg.LogWarnings()

	b, err := config.LoadBundle(cfg.ConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	pipe, err := pipeline.New(b.Preprocessing.Preprocessing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build preprocessing pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	predictor, modelID := loadPredictor(ctx, cfg, b)

	opts := app.PredictOptions{ModelID: modelID, MaxBatch: b.API.MaxBatchSize, CacheTTL: cfg.CacheTTL}
	if cfg.RedisAddr != "" {
		cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, "listing_price:")
		defer func() { _ = cache.Close() }()
		if err := cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable; prediction cache disabled")
		} else {
			opts.Cache = cache
			log.Info().Str("addr", cfg.RedisAddr).Msg("prediction cache enabled")
		}
	}
	svc := app.NewPredictionService(pipe, predictor, opts)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	srv := server.New(15 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Svc:          svc,
		Auth:         app.NewAuthenticator(cfg.APIToken),
		APIKeyHeader: b.API.APIKeyHeader,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("model", modelID).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

// loadPredictor builds the configured backend and returns it with the id
// that scopes cached predictions.
func loadPredictor(ctx context.Context, cfg shared.Config, b *config.Bundle) (domain.Predictor, string) {
	switch cfg.ModelBackend {
	case "remote":
		c, err := modelserver.New(cfg.ModelServerURL, cfg.ModelServerKey, cfg.ModelServerRPS, b.Model.Features)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize model server client")
		}
		if err := c.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("url", cfg.ModelServerURL).Msg("model server check failed")
		}
		log.Info().Str("url", cfg.ModelServerURL).Msg("remote model ready")
		return c, "remote:" + cfg.ModelServerURL
	case "local", "":
		f, err := model.Load(b.API.ModelToUse, b.Model.Features)
		if err != nil {
			log.Fatal().Err(err).Str("path", b.API.ModelToUse).Msg("failed to load model")
		}
		log.Info().Str("path", b.API.ModelToUse).Msg("model loaded")
		return f, f.ID()
	default:
		log.Fatal().Str("backend", cfg.ModelBackend).Msg("unknown MODEL_BACKEND")
		return nil, ""
	}
}
