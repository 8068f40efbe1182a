package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/sketch-arena/internal/battle"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/config"
	"github.com/mauv0809/sketch-arena/internal/cooldown"
	"github.com/mauv0809/sketch-arena/internal/database"
	server "github.com/mauv0809/sketch-arena/internal/http"
	"github.com/mauv0809/sketch-arena/internal/imageresolver"
	"github.com/mauv0809/sketch-arena/internal/judge"
	"github.com/mauv0809/sketch-arena/internal/matchmaking"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/notifier"
	"github.com/mauv0809/sketch-arena/internal/notifier/slack"
	"github.com/mauv0809/sketch-arena/internal/pubsub"
	"github.com/mauv0809/sketch-arena/internal/report"
)

func main() {
	// Start profiling timer
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()

	db, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
	dbInitDuration := time.Since(startTime)
	log.Info("Database initialization time recorded", "duration_ms", dbInitDuration.Milliseconds())
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer func() {
		log.Info("Closing database connection")
		db.Close()
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()
	metricsStore := metrics.New(db)

	pubsubClient, err := pubsub.New(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatalf("Failed to initialize pubsub: %s", err)
	}
	defer pubsubClient.Close()

	var n notifier.Notifier = notifier.Disabled{}
	if cfg.Slack.Token != "" && cfg.Slack.ChannelID != "" {
		n = slack.NewNotifier(cfg.Slack.Token, cfg.Slack.ChannelID, metricsSvc)
	} else {
		log.Info("Slack not configured, notifications are logged only")
	}

	characters := character.New(db)
	guard := cooldown.New(cfg.Battle.Cooldown, characters, metricsSvc)
	go guard.Run(ctx)

	judgeClient := judge.New(judge.Config{
		APIKey:      cfg.Judge.APIKey,
		BaseURL:     cfg.Judge.BaseURL,
		Models:      cfg.Judge.Models,
		CallTimeout: cfg.Judge.CallTimeout,
		Language:    cfg.Judge.Language,
	}, metricsSvc)

	battles := battle.NewService(
		characters,
		battle.New(db),
		guard,
		matchmaking.New(characters, metricsSvc),
		imageresolver.New(cfg.Images.FetchTimeout, cfg.Images.StorageBucket),
		judgeClient,
		pubsubClient,
		metricsSvc,
		metricsStore,
		cfg.Battle,
	)
	reports := report.NewService(report.New(db), characters, n, pubsubClient, metricsSvc, metricsStore)

	s := server.NewServer(
		characters,
		battles,
		reports,
		n,
		pubsubClient,
		metricsSvc,
		metricsHandler,
		metricsStore,
		cfg,
	)

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	// --- Graceful shutdown setup ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("Server started", "port", cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
	}

	log.Info("Server process shutting down")
}
