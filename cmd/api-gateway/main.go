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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/univera/campus-enroll-api/api/swagger"
	"github.com/univera/campus-enroll-api/internal/handler"
	"github.com/univera/campus-enroll-api/internal/middleware"
	"github.com/univera/campus-enroll-api/internal/models"
	"github.com/univera/campus-enroll-api/internal/repository"
	"github.com/univera/campus-enroll-api/internal/service"
	"github.com/univera/campus-enroll-api/pkg/cache"
	"github.com/univera/campus-enroll-api/pkg/config"
	"github.com/univera/campus-enroll-api/pkg/database"
	"github.com/univera/campus-enroll-api/pkg/logger"
	corsmiddleware "github.com/univera/campus-enroll-api/pkg/middleware/cors"
	reqidmiddleware "github.com/univera/campus-enroll-api/pkg/middleware/requestid"
	"github.com/univera/campus-enroll-api/pkg/storage"
)

// @title Campus Enroll API
// @version 1.0.0
// @description Enrollment and attendance engine for the campus platform
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	metricsService := service.NewMetricsService()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Offerings.CacheTTL, logr, redisClient != nil)

	courseRepo := repository.NewCourseRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	validate := validator.New()
	creditPolicy := service.NewCreditPolicy(cfg.Enrollment)

	authService := service.NewAuthService(cfg.JWT)
	courseService := service.NewCourseService(courseRepo, offeringRepo, validate, logr)
	offeringService := service.NewOfferingService(offeringRepo, courseRepo, courseRepo, enrollmentRepo, cacheService, validate, logr, cfg.Offerings.DefaultCapacity)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, offeringRepo, creditPolicy, cacheService, metricsService, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, offeringRepo, enrollmentRepo, cfg.Attendance, metricsService, validate, logr)

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("exports storage init failed", "error", err)
		}
		exportService = service.NewExportService(exportJobRepo, attendanceRepo, offeringRepo, cfg.Attendance, cfg.Exports, files, logr)
		exportService.Start(ctx)
		defer exportService.Stop()

		go func() {
			interval := cfg.Exports.CleanupInterval
			if interval <= 0 {
				interval = time.Hour
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					exportService.Cleanup(ctx)
				}
			}
		}()
	}

	courseHandler := handler.NewCourseHandler(courseService)
	offeringHandler := handler.NewOfferingHandler(offeringService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authService))
	{
		courses := api.Group("/courses")
		courses.GET("", courseHandler.List)
		courses.POST("", middleware.RequireRoles(models.RoleAdmin), courseHandler.Create)
		courses.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), courseHandler.Delete)

		offerings := api.Group("/offerings")
		offerings.GET("", offeringHandler.List)
		offerings.GET("/:id", offeringHandler.Get)
		offerings.POST("", middleware.RequireRoles(models.RoleAdmin), offeringHandler.Create)
		offerings.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), offeringHandler.Delete)
		offerings.GET("/:id/roster", middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty), attendanceHandler.Roster)
		offerings.POST("/:id/attendance", middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty), attendanceHandler.Mark)

		enrollments := api.Group("/enrollments")
		enrollments.POST("", middleware.RequireRoles(models.RoleStudent), enrollmentHandler.Submit)
		enrollments.POST("/preview", middleware.RequireRoles(models.RoleStudent), enrollmentHandler.Preview)
		enrollments.GET("/me", middleware.RequireRoles(models.RoleStudent), enrollmentHandler.ListMine)

		api.GET("/attendance/me", middleware.RequireRoles(models.RoleStudent), attendanceHandler.SummaryMine)

		students := api.Group("/students")
		students.GET("/:studentId/enrollments", middleware.RBAC(string(models.RoleAdmin), "SELF"), enrollmentHandler.ListForStudent)
		students.GET("/:studentId/attendance", middleware.RBAC(string(models.RoleAdmin), "SELF"), attendanceHandler.SummaryForStudent)

		if exportService != nil {
			exportHandler := handler.NewExportHandler(exportService)
			offerings.POST("/:id/exports", middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty), exportHandler.Create)
			api.GET("/exports/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleFaculty), exportHandler.Status)
			r.GET(cfg.APIPrefix+"/exports/download", exportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown error", "error", err)
	}
}
