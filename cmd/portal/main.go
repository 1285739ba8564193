package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-registration-portal/api/swagger"
	"github.com/noah-isme/sma-registration-portal/internal/handler"
	"github.com/noah-isme/sma-registration-portal/internal/middleware"
	"github.com/noah-isme/sma-registration-portal/internal/repository"
	"github.com/noah-isme/sma-registration-portal/internal/service"
	"github.com/noah-isme/sma-registration-portal/pkg/cache"
	"github.com/noah-isme/sma-registration-portal/pkg/config"
	"github.com/noah-isme/sma-registration-portal/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-registration-portal/pkg/middleware/cors"
	"github.com/noah-isme/sma-registration-portal/pkg/storage"
)

// @title SMA Registration Portal
// @version 0.1.0
// @description Student registration portal in front of the registration server
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	validate := validator.New()

	spool, err := storage.NewLocalStorage(cfg.Uploads.Dir, cfg.Uploads.MaxFileSizeBytes)
	if err != nil {
		logr.Fatal("failed to init upload spool", zap.Error(err))
	}
	uploads := service.NewUploadService(spool, logr)
	uploads.Cleanup(cfg.Uploads.Retention)

	registry := repository.NewRegistryRepository(cfg.Registry.BaseURL, &http.Client{Timeout: cfg.Registry.Timeout}, spool, metrics, logr)

	checks := map[string]handler.ReadinessCheck{}
	var tokens repository.TokenRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	if redisClient != nil {
		redisTokens := repository.NewRedisTokenRepository(redisClient, logr)
		defer redisTokens.Close() //nolint:errcheck
		tokens = redisTokens
		checks["redis"] = redisTokens.Ping
		logr.Info("token store: redis", zap.String("host", cfg.Redis.Host))
	} else {
		tokens = repository.NewMemoryTokenRepository()
		logr.Info("token store: memory")
	}

	auth := service.NewAuthService(registry, tokens, validate, logr, service.AuthConfig{
		TokenKey: cfg.Session.TokenStorageKey,
		TokenTTL: cfg.Session.TTL,
	})
	sessions := service.NewSessionService(registry, uploads, auth, metrics, validate, logr, service.SessionConfig{TTL: cfg.Session.TTL})

	router, err := handler.NewRouter(handler.Handlers{
		Forms:   handler.NewFormHandler(uploads),
		Roster:  handler.NewRosterHandler(service.NewExportService(registry, logr)),
		Auth:    handler.NewAuthHandler(auth),
		Pages:   handler.NewPageHandler(uploads, auth, logr),
		Metrics: handler.NewMetricsHandler(metrics, checks),
	}, sessions, metrics, logr, handler.RouterOptions{
		APIPrefix: cfg.APIPrefix,
		Session: middleware.SessionOptions{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.SecureCookie,
		},
		CORS: corsmiddleware.DefaultOptions(cfg.CORS.AllowedOrigins),
	})
	if err != nil {
		logr.Fatal("failed to build router", zap.Error(err))
	}

	if cfg.Env != config.EnvProduction {
		router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "registry", cfg.Registry.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
