package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/archive"
	"github.com/ctp-wound-eligibility-server/internal/domain"
	"github.com/ctp-wound-eligibility-server/internal/review"
	"github.com/ctp-wound-eligibility-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server

	engine     domain.EligibilityEngine
	compliance domain.ComplianceEvaluator
	quality    domain.QualityController
	parser     domain.MeasurementParser

	reviews  review.Store
	archive  *archive.Store
	cache    *verdictCache
	limiters *clientLimiters
	metrics  *serverMetrics
}

// NewServer creates a new HTTP server instance. The review store is
// required; the archive store may be nil when archiving is disabled.
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, reviews review.Store, archiveStore *archive.Store) (*Server, error) {
	cfg := configManager.GetConfig()
	policy := *configManager.GetPolicyConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	cache, err := newVerdictCache(cfg.Server.VerdictCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating verdict cache: %w", err)
	}

	server := &Server{
		configManager: configManager,
		logger:        logger,
		engine:        service.NewPreEligibilityService(logger, policy),
		compliance:    service.NewPhaseComplianceService(logger, policy),
		quality:       service.NewQualityControllerService(logger),
		parser:        service.NewMeasurementParserService(logger),
		reviews:       reviews,
		archive:       archiveStore,
		cache:         cache,
		limiters:      newClientLimiters(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst),
		metrics:       newServerMetrics(),
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(server.rateLimitMiddleware())
	if cfg.Server.MetricsEnabled {
		router.Use(server.metrics.middleware())
	}

	server.router = router
	server.setupRoutes()

	return server, nil
}

// Close releases background resources owned by the server. Safe to call
// more than once; Start calls it on its own shutdown path.
func (s *Server) Close() {
	s.limiters.stop()
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.WithFields(logrus.Fields{
		"addr": addr,
		"tls":  cfg.TLSEnabled,
	}).Info("HTTP server started")

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	if s.configManager.GetServerConfig().MetricsEnabled {
		s.router.GET("/metrics", s.metrics.handler())
	}

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/pre-eligibility", s.handlePreEligibility)
		v1.POST("/compliance", s.handleCompliance)
		v1.POST("/geometry/area", s.handleGeometryArea)
		v1.POST("/quality", s.handleQuality)

		v1.POST("/reviews", s.handleSaveReview)
		v1.GET("/reviews", s.handleListReviews)

		if s.archive != nil {
			v1.GET("/verdicts/:id", s.handleGetVerdict)
			v1.GET("/episodes/:episode_id/verdicts", s.handleListVerdicts)
		}
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   service.EngineVersion,
		"policy":    s.configManager.PolicyMetadata(),
	})
}
