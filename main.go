package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"marketplace-api/internal/config"
	"marketplace-api/internal/db"
	"marketplace-api/internal/logger"
	"marketplace-api/internal/metrics"
	"marketplace-api/internal/notify"
	"marketplace-api/internal/repository"
	"marketplace-api/internal/router"
	"marketplace-api/internal/services"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("driver", cfg.DBDriver).Msg("Starting marketplace API")

	database := db.InitDB(cfg.DBDriver, cfg.DBUrl, log)
	defer database.Close()

	if err := db.RunMigrations(database, cfg.DBDriver); err != nil {
		log.Fatal().Err(err).Msg("Migrations failed")
	}

	store := repository.NewStore(database)
	cache := storeCache(cfg, log)
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	verifier := services.NewCredentialVerifier(cfg.JWTSecret, cfg.JWTTTL, log)
	resetService := services.NewPasswordResetService(store, notifier(cfg, log), m, services.ResetConfig{
		Window:     cfg.ResetTokenWindow,
		ResetURI:   cfg.ResetURI,
		BcryptCost: cfg.BcryptCost,
	}, log)

	handler := router.SetupRouter(router.Dependencies{
		Users:          services.NewUserService(store, cache, cfg.BcryptCost, log),
		Stores:         services.NewStoreService(store, cache, m, log),
		Products:       services.NewProductService(store, log),
		Categories:     services.NewCategoryService(store, log),
		Carts:          services.NewCartService(store, m, log),
		Resets:         resetService,
		Verifier:       verifier,
		Resolver:       services.NewIdentityResolver(store, store, store, log),
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, log)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	resetService.Wait()
	if err := cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store cache")
	}
	log.Info().Msg("Server stopped")
}

// storeCache falls back to no caching when Redis is not configured or not
// reachable at startup.
func storeCache(cfg config.Config, log zerolog.Logger) repository.ClosableStoreCache {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cache, err := repository.ConnectStoreCache(ctx, cfg.RedisURL, cfg.StoreCacheTTL)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Store cache disabled")
	case cfg.RedisURL != "":
		log.Info().Msg("Store cache backed by Redis")
	}
	return cache
}

func notifier(cfg config.Config, log zerolog.Logger) notify.Notifier {
	if cfg.SMTPHost == "" {
		log.Warn().Msg("SMTP_HOST not set, reset emails are only logged")
		return notify.NewLogNotifier(log)
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, log)
}
