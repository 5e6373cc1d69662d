package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/clearview-lms/clearview-api/api/swagger"
	"github.com/clearview-lms/clearview-api/internal/handler"
	"github.com/clearview-lms/clearview-api/internal/middleware"
	"github.com/clearview-lms/clearview-api/internal/repository"
	"github.com/clearview-lms/clearview-api/internal/service"
	"github.com/clearview-lms/clearview-api/pkg/cache"
	"github.com/clearview-lms/clearview-api/pkg/config"
	"github.com/clearview-lms/clearview-api/pkg/database"
	"github.com/clearview-lms/clearview-api/pkg/logger"
	corsmiddleware "github.com/clearview-lms/clearview-api/pkg/middleware/cors"
	reqidmiddleware "github.com/clearview-lms/clearview-api/pkg/middleware/requestid"
)

// @title Clearview Completion API
// @version 1.0.0
// @description Category completion reporting for LMS course categories
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	categoryRepo := repository.NewCategoryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Cache.KeyPrefix, logr)
	advreportRepo := repository.NewAdvancedReportRepository(db)
	defer cacheRepo.Close()

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, logr, cfg.Cache.Enabled)
	aggregationSvc := service.NewAggregationService(categoryRepo, metricsSvc, logr)
	tenancySvc := service.NewTenancyService(cfg.Tenancy, logr)
	reportSvc := service.NewReportService(aggregationSvc, cacheSvc, tenancySvc, logr)
	exportSvc := service.NewExportService(reportSvc, logr)

	registry := service.BuildRegistry(cfg.Reports.EnabledKinds)
	advreportSvc := service.NewAdvancedReportService(advreportRepo, registry, cacheSvc, cfg.Host, logr)

	refreshSvc := service.NewRefreshService(aggregationSvc, advreportSvc, cacheSvc, metricsSvc, logr,
		cfg.Refresh.Interval, cfg.Refresh.Concurrency)

	reportHandler := handler.NewReportHandler(reportSvc, exportSvc)
	advreportHandler := handler.NewAdvancedReportHandler(advreportSvc)
	adminHandler := handler.NewAdminHandler(refreshSvc, logr)
	healthHandler := handler.NewHealthHandler(db, redisClient, metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		api.GET("/categories", reportHandler.ListCategories)
		api.GET("/categories/:id/report", reportHandler.CategoryReport)
		api.GET("/categories/:id/report/export", reportHandler.Export)

		api.GET("/advreports", advreportHandler.List)
		api.GET("/advreports/:id", advreportHandler.Get)

		admin := api.Group("/admin")
		admin.Use(middleware.RequireSiteAdmin())
		admin.POST("/cache/refresh", adminHandler.RefreshCache)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	refreshSvc.Start(ctx, cfg.Refresh.OnStart)

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
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
