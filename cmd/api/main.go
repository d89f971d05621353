package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"alfredoptarigan/resume-screener/internal/config"
	"alfredoptarigan/resume-screener/internal/handlers"
	"alfredoptarigan/resume-screener/internal/logger"
	"alfredoptarigan/resume-screener/internal/repositories"
	"alfredoptarigan/resume-screener/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	zl, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	if err := cfg.Validate(); err != nil {
		zl.Fatal("❌ Invalid configuration", zap.Error(err))
	}
	zl.Info("✅ Config loaded successfully")

	ctx := context.Background()

	// Initialize store
	store, err := newStore(cfg, zl)
	if err != nil {
		zl.Fatal("❌ Failed to initialize store", zap.Error(err))
	}
	repo := repositories.NewUserDataRepository(store)
	zl.Info("✅ Repository initialized successfully", zap.String("driver", cfg.Database.Driver))

	// Initialize services
	storageService := services.NewStorageService(cfg.Storage.UploadPath, cfg.Storage.MaxFileSize, zl)
	if err := storageService.EnsureUploadDir(); err != nil {
		zl.Fatal("❌ Failed to create upload directory", zap.Error(err))
	}

	parser := services.NewDocumentParserService(zl)

	// Initialize Qdrant (optional)
	var index services.ResultIndex
	if cfg.Qdrant.URL != "" {
		index, err = newIndex(ctx, cfg, zl)
		if err != nil {
			zl.Fatal("❌ Failed to initialize Qdrant", zap.Error(err))
		}
		zl.Info("✅ Qdrant initialized successfully")
	} else {
		zl.Info("ℹ️ QDRANT_URL not set, semantic search disabled")
	}

	if cfg.Gemini.APIKey == "" {
		zl.Warn("⚠️ GEMINI_API_KEY not set, every analysis will fail")
	}

	analyzer := services.NewAnalyzer(repo, parser, index, services.AnalyzerConfig{
		CacheTTL: cfg.Analysis.CacheTTL,
		Poll: services.PollPolicy{
			Interval:    cfg.Analysis.PollInterval,
			MaxAttempts: cfg.Analysis.PollMaxAttempts,
		},
		Retry: services.RetryPolicy{
			MaxAttempts: cfg.Analysis.RetryMaxAttempts,
			Multiplier:  cfg.Analysis.RetryMultiplier,
			MinWait:     cfg.Analysis.RetryMinWait,
			MaxWait:     cfg.Analysis.RetryMaxWait,
		},
	}, zl)

	orchestrator := services.NewOrchestrator(
		analyzer,
		services.NewGeminiEvaluatorFactory(cfg.Gemini.APIKey, cfg.Gemini.Model),
		repo,
		cfg.Analysis.MaxWorkers,
		cfg.Analysis.TaskTimeout,
		zl,
	)
	zl.Info("✅ Services initialized successfully")

	// Initialize Handlers
	uploadHandler := handlers.NewUploadHandler(
		storageService,
		orchestrator,
		validator.New(),
		cfg.Storage.MaxFileSize,
		cfg.Analysis.MaxWorkers,
		zl,
	)
	resultHandler := handlers.NewResultHandler(repo, index, zl)
	historyHandler := handlers.NewHistoryHandler(repo)
	zl.Info("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Resume Screener API",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.Analysis.TaskTimeout + time.Minute,
		BodyLimit:    int(2*cfg.Storage.MaxFileSize) + 1<<20,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	handlers.RegisterRoutes(app, uploadHandler, resultHandler, historyHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zl.Info("🛑 Shutting down server...")
		if err := app.Shutdown(); err != nil {
			zl.Error("❌ Server forced to shutdown", zap.Error(err))
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zl.Info("🚀 Server starting", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		zl.Fatal("❌ Failed to start server", zap.Error(err))
	}
}

func newStore(cfg *config.Config, zl *zap.Logger) (repositories.UserDataStore, error) {
	if cfg.Database.Driver == config.StoreDriverMemory {
		return repositories.NewMemoryStore(), nil
	}

	db, err := config.InitDatabase(cfg, zl)
	if err != nil {
		return nil, err
	}
	return repositories.NewPostgresStore(db), nil
}

func newIndex(ctx context.Context, cfg *config.Config, zl *zap.Logger) (services.ResultIndex, error) {
	embedder, err := services.NewGeminiEmbedder(ctx, cfg.Gemini.APIKey, cfg.Gemini.EmbedModel)
	if err != nil {
		return nil, err
	}

	index, err := services.NewQdrantIndex(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection, embedder, zl)
	if err != nil {
		return nil, err
	}

	if err := index.InitCollection(ctx); err != nil {
		return nil, err
	}
	return index, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
