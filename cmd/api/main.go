package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Roughriver74/west-buget-it-sub003/internal/cache"
	"github.com/Roughriver74/west-buget-it-sub003/internal/classify"
	"github.com/Roughriver74/west-buget-it-sub003/internal/config"
	"github.com/Roughriver74/west-buget-it-sub003/internal/handler"
	"github.com/Roughriver74/west-buget-it-sub003/internal/ledger"
	"github.com/Roughriver74/west-buget-it-sub003/internal/repository/postgres"
	"github.com/Roughriver74/west-buget-it-sub003/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	transactionRepo := postgres.NewTransactionRepository(pool)
	mappingRepo := postgres.NewOperationMappingRepository(pool)
	categoryRepo := postgres.NewBudgetCategoryRepository(pool)
	departmentRepo := postgres.NewDepartmentRepository(pool)

	// External ledger client
	ledgerClient := ledger.NewClient(cfg.Ledger)

	// Aggregate cache: one instance for the process, injected everywhere
	aggregates := cache.New(cfg.CacheTTL)

	// Classifier rule chain: mappings first, then purpose keywords, then
	// counterparty history
	classifier := classify.NewClassifier(
		classify.NewMappingRule(mappingRepo),
		classify.NewKeywordRule(categoryRepo, classify.DefaultKeywords),
		classify.NewHistoryRule(transactionRepo),
	)

	// Initialize services
	syncService := service.NewSyncService(
		ledgerClient, transactionRepo, departmentRepo, classifier, aggregates,
		cfg.AutoAssignThreshold, cfg.SyncMaxPages)
	mappingService := service.NewMappingService(mappingRepo, categoryRepo, transactionRepo)
	reviewService := service.NewReviewService(transactionRepo, categoryRepo, aggregates)
	reportService := service.NewReportService(transactionRepo, categoryRepo, aggregates)

	// Initialize handlers
	syncHandler := handler.NewSyncHandler(syncService, cfg.SyncBatchSize)
	reviewHandler := handler.NewReviewHandler(reviewService, mappingService)
	mappingHandler := handler.NewMappingHandler(mappingService)
	reportHandler := handler.NewReportHandler(reportService)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Register API routes
	handler.RegisterRoutes(e, syncHandler, reviewHandler, mappingHandler, reportHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
