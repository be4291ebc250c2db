package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mauv0809/portfolio-tracker/internal/cache"
	"github.com/mauv0809/portfolio-tracker/internal/classify"
	"github.com/mauv0809/portfolio-tracker/internal/config"
	"github.com/mauv0809/portfolio-tracker/internal/db"
	"github.com/mauv0809/portfolio-tracker/internal/handlers"
	"github.com/mauv0809/portfolio-tracker/internal/ingest"
	"github.com/mauv0809/portfolio-tracker/internal/logger"
	"github.com/mauv0809/portfolio-tracker/internal/marketdata"
	"github.com/mauv0809/portfolio-tracker/internal/portfolio"
	"github.com/mauv0809/portfolio-tracker/internal/server"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New(logger.Config{Level: "info"})
		l.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The server still starts without a database; store routes answer 500.
	var (
		svc     handlers.Portfolio
		options []handlers.Option
	)
	if err := cfg.RequireDatabase(); err != nil {
		log.Warn().Msg("DATABASE_URL not set, portfolio routes disabled")
	} else {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Warn().Err(err).Msg("Could not run migrations")
		} else {
			log.Info().Msg("Migrations completed")
		}

		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("Could not connect to database, continuing without it")
			options = append(options, handlers.WithStoreError(err))
		} else {
			defer pool.Close()
			log.Info().Msg("Connected to database")
			svc = newPortfolioService(cfg, db.NewRepository(pool), log)
		}
	}

	srv := server.New(handlers.New(svc, log, cfg.UploadMaxBytes, options...), log)

	go func() {
		if err := srv.Start(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	if err := srv.Shutdown(context.Background(), 10*time.Second); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
}

func newPortfolioService(cfg *config.Config, repo *db.Repository, log zerolog.Logger) *portfolio.Service {
	quotes := marketdata.NewClient(
		marketdata.WithBaseURL(cfg.QuoteBaseURL),
		marketdata.WithTimeout(cfg.QuoteTimeout),
		marketdata.WithRateLimit(cfg.QuoteRateLimit),
		marketdata.WithLogger(log),
	)
	classifier := classify.New(quotes, log)

	manager := cache.NewManager(repo, classifier, log,
		cache.WithWindow(cfg.FreshnessWindow),
		cache.WithMaxBackoffSteps(cfg.MaxBackoffSteps),
	)

	var opts []ingest.Option
	if cfg.PrimeOnImport {
		opts = append(opts, ingest.WithPrimer(manager))
	}
	importer := ingest.NewImporter(repo, log, opts...)

	return portfolio.NewService(repo, manager, importer, log)
}
