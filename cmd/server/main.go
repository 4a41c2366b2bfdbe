package main

import (
	"alcyxob/health-protocols/internal/api"
	"alcyxob/health-protocols/internal/config"
	"alcyxob/health-protocols/internal/generator"
	"alcyxob/health-protocols/internal/logging"
	"alcyxob/health-protocols/internal/repository"
	"alcyxob/health-protocols/internal/repository/memory"
	"alcyxob/health-protocols/internal/repository/mongo"
	"alcyxob/health-protocols/internal/service"
	"alcyxob/health-protocols/internal/storage"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title Health Protocols API
// @version 1.0
// @description API for trainers building health protocols for their customers and assigning them.
// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server exiting")
}

func run(cfg config.Config, logger *zap.Logger) error {
	logger.Info("Starting Health Protocols server",
		zap.String("address", cfg.Server.Address),
		zap.String("databaseDriver", cfg.Database.Driver),
		zap.Int64("maxProtocolBodyBytes", cfg.Server.MaxProtocolBodyBytes))

	ctx := context.Background()

	// --- Repositories ---
	var (
		userRepo       repository.UserRepository
		templateRepo   repository.TemplateRepository
		protocolRepo   repository.ProtocolRepository
		assignmentRepo repository.AssignmentRepository
	)
	switch cfg.Database.Driver {
	case "memory":
		db := memory.NewDB()
		userRepo = memory.NewUserRepository(db)
		templateRepo = memory.NewTemplateRepository(db)
		protocolRepo = memory.NewProtocolRepository(db)
		assignmentRepo = memory.NewAssignmentRepository(db)
		logger.Warn("Using in-memory storage; data is lost on restart")
	default:
		dbClient, err := mongo.ConnectDB(cfg.Database.URI)
		if err != nil {
			return fmt.Errorf("connect to MongoDB: %w", err)
		}
		defer func() {
			logger.Info("Disconnecting MongoDB")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				logger.Error("Failed to disconnect MongoDB", zap.Error(err))
			}
		}()
		appDB := dbClient.Database(cfg.Database.Name)
		logger.Info("Database connection established", zap.String("database", cfg.Database.Name))

		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		mongo.EnsureIndexes(indexCtx, appDB, logger)
		cancel()

		userRepo = mongo.NewMongoUserRepository(appDB)
		templateRepo = mongo.NewMongoTemplateRepository(appDB)
		protocolRepo = mongo.NewMongoProtocolRepository(appDB)
		assignmentRepo = mongo.NewMongoAssignmentRepository(appDB)
	}

	// --- Optional integrations ---
	var fileStorage storage.FileStorage
	if cfg.S3.Enabled {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.S3, logger)
		if err != nil {
			return fmt.Errorf("initialize S3 storage: %w", err)
		}
		fileStorage = s3Storage
	} else {
		logger.Info("Object storage disabled; protocol exports will return 503")
	}

	var gen generator.Generator = generator.Disabled{}
	if cfg.LLM.Enabled {
		genaiGen, err := generator.NewGenAIGenerator(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
		if err != nil {
			return fmt.Errorf("initialize content generator: %w", err)
		}
		gen = genaiGen
		logger.Info("Content generation enabled", zap.String("model", cfg.LLM.Model))
	}

	// --- Services ---
	templateService := service.NewTemplateService(templateRepo, logger)
	seedCtx, cancelSeed := context.WithTimeout(ctx, 30*time.Second)
	_, err := templateService.SeedDefaults(seedCtx)
	cancelSeed()
	if err != nil {
		return fmt.Errorf("seed protocol templates: %w", err)
	}

	services := api.Services{
		Auth:     service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, logger),
		Trainer:  service.NewTrainerService(userRepo, logger),
		Template: templateService,
		Protocol: service.NewProtocolService(userRepo, templateRepo, protocolRepo, assignmentRepo, gen, fileStorage, logger),
	}

	// --- Gin Engine ---
	if cfg.Server.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger))
	api.SetupRoutes(router, cfg.JWT.Secret, cfg.Server.MaxProtocolBodyBytes, services)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("Shutting down server", zap.String("signal", sig.String()))
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
