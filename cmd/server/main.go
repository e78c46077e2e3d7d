package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aitale-server/internal/ai"
	"aitale-server/internal/config"
	"aitale-server/internal/database"
	"aitale-server/internal/handler"
	"aitale-server/internal/logger"
	"aitale-server/internal/middleware"
	"aitale-server/internal/service"
	"aitale-server/internal/storage"
	"aitale-server/internal/taskmanager"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to the .env file")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogFormat,
		Development: !cfg.IsProduction(),
		Service:     "aitale-server",
		Version:     cfg.AppVersion,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel), zap.String("env", cfg.Env))

	// --- External connections ---
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancelStartup()

	pgPool, err := database.ConnectPostgres(startupCtx, cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()

	if err := database.NewMigrator(pgPool, log).Up(); err != nil {
		log.Fatal("Failed to apply database migrations", zap.Error(err))
	}

	redisClient, err := database.ConnectRedis(startupCtx, cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	var blobStore storage.BlobStore
	if cfg.BlobStorageEnabled() {
		blobStore, err = storage.NewGCSStore(startupCtx, storage.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CDNDomain:       cfg.GCSCDNDomain,
			CredentialsFile: cfg.GCSCredentialsFile,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize blob storage", zap.Error(err))
		}
		if closer, ok := blobStore.(io.Closer); ok {
			defer closer.Close()
		}
	} else {
		log.Info("GCS_BUCKET not set, generated images keep provider URLs")
	}

	textClient, err := ai.NewClient(cfg, log)
	if err != nil {
		log.Fatal("Failed to create AI client", zap.Error(err))
	}

	// --- Dependency injection ---
	txManager := database.NewPoolTxManager(pgPool, log)
	userRepo := database.NewPgUserRepository(log)
	storyRepo := database.NewPgStoryRepository(log)
	pageRepo := database.NewPgPageRepository(log)
	tokenRepo := database.NewRedisTokenRepository(redisClient, log)

	tasks := taskmanager.New(taskmanager.Config{MaxTasks: cfg.MaxBackgroundTasks}, log)
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	tasks.StartCleanup(cleanupCtx, cfg.TaskCleanupInterval)

	imageClient := service.NewOpenAIImageClient(service.ImageClientConfig{
		APIKey:      cfg.AIAPIKey,
		BaseURL:     cfg.AIBaseURL,
		Model:       cfg.ImageGenModel,
		DefaultSize: cfg.ImageSize,
		Quality:     cfg.ImageQuality,
		Timeout:     cfg.AITimeout,
	}, blobStore, log)
	deriver := service.NewImagePromptDeriver(textClient, cfg.ImagePromptConcurrency, cfg.AIRequestsPerSecond, log)

	authService := service.NewAuthService(txManager, userRepo, tokenRepo, cfg, log)
	userService := service.NewUserService(txManager, userRepo, tokenRepo, cfg, log)
	storyService := service.NewStoryService(txManager, storyRepo, pageRepo, tasks, textClient, deriver, cfg, log)
	pageService := service.NewPageService(txManager, storyRepo, pageRepo, tasks, imageClient, log)

	// --- HTTP server (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if !cfg.IsProduction() {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.GinZapLogger(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
		log.Warn("CORS_ALLOWED_ORIGINS is empty, allowing all origins")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	var authRateLimit gin.HandlerFunc
	if cfg.AuthRateLimit > 0 {
		store := middleware.NewRedisRateLimitStore(redisClient, cfg.AuthRateWindow, cfg.AuthRateLimit)
		authRateLimit = middleware.RateLimit(store, log.Named("RateLimit"))
	}
	handler.NewHandler(authService, userService, storyService, pageService, cfg, log).RegisterRoutes(router, authRateLimit)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.ServerPort), zap.String("apiPrefix", cfg.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	// Пул БД закрывается только после завершения фоновых задач.
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		log.Error("Background tasks did not finish in time", zap.Error(err))
	}

	log.Info("Server exiting")
}
