package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/casefile-api/api/swagger"
	"github.com/noah-isme/casefile-api/internal/catalog"
	"github.com/noah-isme/casefile-api/internal/handler"
	internalmiddleware "github.com/noah-isme/casefile-api/internal/middleware"
	"github.com/noah-isme/casefile-api/internal/repository"
	"github.com/noah-isme/casefile-api/internal/service"
	"github.com/noah-isme/casefile-api/pkg/cache"
	"github.com/noah-isme/casefile-api/pkg/config"
	"github.com/noah-isme/casefile-api/pkg/database"
	"github.com/noah-isme/casefile-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/casefile-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/casefile-api/pkg/middleware/requestid"
	"github.com/noah-isme/casefile-api/pkg/render"
	"github.com/noah-isme/casefile-api/pkg/storage"
)

// @title Case File API
// @version 1.0.0
// @description Student case-file records and document rendering
// @BasePath /api/v1
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

	cat, err := catalog.Load(cfg.Templates.CatalogFile)
	if err != nil {
		logr.Fatal("failed to load document catalog", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, lookups served from database", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	files, err := storage.NewLocalStorage(cfg.Templates.OutputDir)
	if err != nil {
		logr.Fatal("failed to prepare output directory", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	recordRepo := repository.NewRecordRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	lookupRepo := repository.NewLookupRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, "casefile", cfg.Lookups.CacheTTL, logr, cfg.Lookups.CacheEnabled && redisClient != nil)
	lookupSvc := service.NewLookupService(cat, lookupRepo, cacheSvc, cfg.Lookups.CacheTTL, logr)
	recordSvc := service.NewRecordService(cat, recordRepo, metricsSvc, validate, logr)

	var converter service.DocumentConverter
	if cfg.Templates.ConverterURL != "" {
		converter = render.NewGotenbergConverter(cfg.Templates.ConverterURL, cfg.Templates.ConverterTimeout)
	} else {
		logr.Info("no document converter configured, pdf conversion of docx templates disabled")
	}
	documentSvc := service.NewDocumentService(
		cat,
		recordRepo,
		lookupSvc,
		render.NewTemplateStore(cfg.Templates.Dir),
		converter,
		files,
		folderRepo,
		storage.NewSignedURLSigner(cfg.Downloads.Secret, cfg.Downloads.TTL),
		metricsSvc,
		logr,
		service.DocumentServiceConfig{APIPrefix: cfg.APIPrefix},
	)
	folderSvc := service.NewFolderService(cat, folderRepo, logr)

	recordHandler := handler.NewRecordHandler(recordSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	folderHandler := handler.NewFolderHandler(folderSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health"))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(strings.TrimRight(cfg.APIPrefix, "/"))
	api.GET("/metrics/summary", metricsHandler.Summary)

	documents := api.Group("/documents")
	documents.GET("", recordHandler.Documents)
	documents.GET("/:document_id/records", recordHandler.List)
	documents.POST("/:document_id/records", recordHandler.Store)
	documents.GET("/:document_id/records/:id", recordHandler.Get)
	documents.PUT("/:document_id/records/:id", recordHandler.Update)
	documents.DELETE("/:document_id/records/:id", recordHandler.Delete)
	documents.GET("/:document_id/students/:student_id/latest", recordHandler.Latest)
	documents.GET("/:document_id/students/:student_id/render", documentHandler.Render)
	documents.GET("/:document_id/students/:student_id/render-url", documentHandler.RenderURL)

	api.GET("/downloads/:token", documentHandler.Download)

	students := api.Group("/students/:student_id")
	students.GET("/folder", folderHandler.List)
	students.GET("/folder/export", folderHandler.Export)
	students.GET("/folder/:document_id", folderHandler.History)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting",
		zap.String("addr", addr),
		zap.String("env", cfg.Env),
		zap.Int("document_types", len(cat.Summaries())),
	)
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}
