package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/api"
	"github.com/ctp-wound-eligibility-server/internal/archive"
	"github.com/ctp-wound-eligibility-server/internal/config"
	"github.com/ctp-wound-eligibility-server/internal/database"
	"github.com/ctp-wound-eligibility-server/internal/domain"
	"github.com/ctp-wound-eligibility-server/internal/review"
)

func main() {
	logger := logrus.New()

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration validation failed")
	}

	cfg := configManager.GetConfig()
	configureLogger(logger, cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host":      cfg.Server.Host,
		"port":      cfg.Server.Port,
		"policy_id": cfg.Policy.PolicyID,
	}).Info("Starting CTP eligibility server")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clinician review store
	reviews, err := openReviewStore(cfg.Review)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open review store")
	}
	defer reviews.Close()

	// Verdict archive (optional)
	var archiveStore *archive.Store
	if cfg.Server.ArchiveEnabled {
		if err := runMigrations(configManager, logger); err != nil {
			logger.WithError(err).Fatal("Failed to run archive migrations")
		}

		pool, err := database.NewPool(ctx, &cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to archive database")
		}
		defer pool.Close()
		archiveStore = archive.NewStore(pool, logger)
	}

	// Create server
	server, err := api.NewServer(configManager, logger, reviews, archiveStore)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// configureLogger applies the logging configuration.
func configureLogger(logger *logrus.Logger, cfg domain.LoggingConfig) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// openReviewStore opens the configured clinician review backend.
func openReviewStore(cfg domain.ReviewConfig) (review.Store, error) {
	if cfg.Backend == "postgres" {
		return review.NewPostgresStoreFromURL(cfg.DatabaseURL)
	}
	return review.NewSQLiteStore(cfg.SQLitePath)
}

// runMigrations brings the archive schema up to date before serving.
func runMigrations(configManager domain.ConfigManager, logger *logrus.Logger) error {
	db := configManager.GetDatabaseConfig()
	url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode)

	migrator, err := database.NewMigrator(url, db.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up()
}
