package main

import (
	"context"
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

	_ "github.com/osa-scan/dresscode-api/api/swagger"
	"github.com/osa-scan/dresscode-api/internal/handler"
	"github.com/osa-scan/dresscode-api/internal/middleware"
	"github.com/osa-scan/dresscode-api/internal/models"
	"github.com/osa-scan/dresscode-api/internal/realtime"
	"github.com/osa-scan/dresscode-api/internal/repository"
	"github.com/osa-scan/dresscode-api/internal/service"
	"github.com/osa-scan/dresscode-api/pkg/cache"
	"github.com/osa-scan/dresscode-api/pkg/config"
	"github.com/osa-scan/dresscode-api/pkg/database"
	"github.com/osa-scan/dresscode-api/pkg/logger"
	corsmiddleware "github.com/osa-scan/dresscode-api/pkg/middleware/cors"
	reqidmiddleware "github.com/osa-scan/dresscode-api/pkg/middleware/requestid"
	"github.com/osa-scan/dresscode-api/pkg/storage"
)

// @title Dress Code Violation API
// @version 1.0.0
// @description Campus dress-code violation tracking: lifecycle, live dashboards and reporting
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache and cross-instance events", "error", err)
		redisClient = nil
	}

	violationRepo := repository.NewViolationRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	evidenceStore, err := newEvidenceStore(ctx, cfg.Evidence)
	if err != nil {
		logr.Sugar().Fatalw("failed to init evidence store", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Evidence.SignedURLSecret, cfg.Evidence.SignedURLTTL)

	hub := realtime.NewHub(cfg.Events.SubscriberBuffer, logr)
	var bridge *realtime.RedisBridge
	if redisClient != nil {
		bridge = realtime.NewRedisBridge(redisClient, hub, cfg.Events.RedisChannel, logr)
		bridge.Start(ctx)
		defer bridge.Stop()
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	eventService := service.NewEventService(hub, relayOrNil(bridge), cfg.Events.PublishWorkers, logr)
	eventService.Start(ctx)
	defer eventService.Stop()

	evidenceService := service.NewEvidenceService(evidenceStore, signer, cacheRepo, cfg.Evidence, cfg.Dashboard.LatestEvidenceTTL, logr)
	evidenceService.StartCleanup(ctx)
	defer evidenceService.StopCleanup()

	lifecycleService := service.NewLifecycleService(violationRepo, eventService, validate, logr)
	queryService := service.NewQueryService(violationRepo, cacheRepo, evidenceService, cfg.Dashboard, logr)
	exportService := service.NewExportService(queryService, cfg.Exports, logr)
	authService := service.NewAuthService(userRepo, cfg.JWT, validate, logr)
	userService := service.NewUserService(userRepo, validate, logr)

	authHandler := handler.NewAuthHandler(authService, logr)
	violationHandler := handler.NewViolationHandler(lifecycleService, queryService, evidenceService, exportService, logr)
	eventsHandler := handler.NewEventsHandler(hub, metricsService, logr)
	userHandler := handler.NewUserHandler(userService, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(authService), authHandler.Me)

	violations := api.Group("/violations")
	// Evidence downloads authenticate through the signed token alone so
	// dashboards can embed plain image URLs.
	violations.GET("/evidence/latest", middleware.JWT(authService), violationHandler.LatestEvidence)
	violations.GET("/evidence/:token", violationHandler.DownloadEvidence)
	violations.Use(middleware.JWT(authService))
	violations.POST("",
		middleware.RequireRoles(models.RoleSecurity, models.RoleOSA, models.RoleSuperuser),
		middleware.Audit(userRepo, logr, models.AuditActionViolationCreate, "violations"),
		violationHandler.Create)
	violations.GET("", violationHandler.List)
	violations.GET("/today", violationHandler.Today)
	violations.GET("/stats", violationHandler.Stats)
	violations.GET("/analytics", violationHandler.Analytics)
	violations.GET("/export", middleware.RequireRoles(models.RoleOSA, models.RoleSuperuser), violationHandler.Export)
	violations.GET("/:id", violationHandler.Get)
	violations.PATCH("/:id",
		middleware.RequireRoles(models.RoleSecurity, models.RoleOSA, models.RoleSuperuser),
		middleware.Audit(userRepo, logr, models.AuditActionViolationUpdate, "violations"),
		violationHandler.Update)
	violations.DELETE("/:id",
		middleware.RequireRoles(models.RoleOSA, models.RoleSuperuser),
		middleware.Audit(userRepo, logr, models.AuditActionViolationDelete, "violations"),
		violationHandler.Delete)
	violations.POST("/:id/restore",
		middleware.RequireRoles(models.RoleOSA, models.RoleSuperuser),
		middleware.Audit(userRepo, logr, models.AuditActionViolationRestore, "violations"),
		violationHandler.Restore)

	api.GET("/events/:channel", middleware.JWT(authService), eventsHandler.Stream)

	users := api.Group("/users", middleware.JWT(authService), middleware.RequireRoles(models.RoleSuperuser))
	users.POST("", userHandler.Create)
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PATCH("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func newEvidenceStore(ctx context.Context, cfg config.EvidenceConfig) (storage.EvidenceStore, error) {
	switch cfg.Backend {
	case storage.BackendS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	default:
		return storage.NewLocalStore(cfg.StorageDir)
	}
}

// relayOrNil avoids handing the event service a typed nil interface when the
// bridge is absent.
func relayOrNil(bridge *realtime.RedisBridge) interface {
	Publish(ctx context.Context, channel models.Channel, event models.LifecycleEvent) error
} {
	if bridge == nil {
		return nil
	}
	return bridge
}
