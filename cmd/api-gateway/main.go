package main

import (
	"context"
	"errors"
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

	_ "github.com/neattend/neattend-api/api/swagger"
	"github.com/neattend/neattend-api/internal/handler"
	"github.com/neattend/neattend-api/internal/middleware"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/internal/repository"
	"github.com/neattend/neattend-api/internal/service"
	"github.com/neattend/neattend-api/pkg/cache"
	"github.com/neattend/neattend-api/pkg/config"
	"github.com/neattend/neattend-api/pkg/database"
	"github.com/neattend/neattend-api/pkg/jobs"
	"github.com/neattend/neattend-api/pkg/logger"
	"github.com/neattend/neattend-api/pkg/mailer"
	corsmiddleware "github.com/neattend/neattend-api/pkg/middleware/cors"
	reqidmiddleware "github.com/neattend/neattend-api/pkg/middleware/requestid"
	"github.com/neattend/neattend-api/pkg/storage"
)

// @title NE-ATTEND API
// @version 1.0.0
// @description Classroom attendance management backend with bulk onboarding, analytics, and report exports
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Analytics.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, analytics caching disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, true)
		}
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	reportRepo := repository.NewReportRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	instructorSvc := service.NewInstructorService(instructorRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, instructorRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, cacheSvc, validate, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, metricsSvc, logr)

	// Credential notifications ride the in-memory queue so uploads never
	// block on mail delivery.
	var notificationSvc *service.NotificationService
	notifQueue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		return notificationSvc.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers: cfg.Notifications.WorkerConcurrency,
		Logger:  logr,
	})
	notificationSvc = service.NewNotificationService(
		mailer.NewFromConfig(cfg.Mail, logr), notifQueue, logr, cfg.Notifications.Enabled)
	if notificationSvc.Enabled() {
		notifQueue.Start(ctx)
		defer notifQueue.Stop()
	}

	uploadSvc := service.NewUploadService(studentRepo, instructorRepo, userRepo, notificationSvc, cfg.Uploads, logr)

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("report storage init failed", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(analyticsRepo, studentRepo, instructorRepo, subjectRepo,
			store, signer, service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL}, logr, nil, nil)

		reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		reportQueue := jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)
		defer reportQueue.Stop()

		reportSvc = service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
			MaxRetries:      cfg.Reports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	instructorHandler := handler.NewInstructorHandler(instructorSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	uploadHandler := handler.NewUploadHandler(uploadSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

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
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	students := api.Group("/students", middleware.JWT(authSvc))
	{
		students.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), studentHandler.List)
		students.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), studentHandler.Get)
		students.POST("", middleware.RequireRoles(models.RoleAdmin), studentHandler.Create)
		students.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Update)
		students.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Delete)
	}

	instructors := api.Group("/instructors", middleware.JWT(authSvc))
	{
		instructors.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), instructorHandler.List)
		instructors.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), instructorHandler.Get)
		instructors.POST("", middleware.RequireRoles(models.RoleAdmin), instructorHandler.Create)
		instructors.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), instructorHandler.Update)
		instructors.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), instructorHandler.Delete)
	}

	subjects := api.Group("/subjects", middleware.JWT(authSvc))
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Create)
		subjects.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Update)
		subjects.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), subjectHandler.Delete)
	}

	attendance := api.Group("/attendance", middleware.JWT(authSvc))
	{
		marker := middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor)
		attendance.GET("", marker, attendanceHandler.List)
		attendance.GET("/summary", marker, attendanceHandler.Summary)
		attendance.POST("", marker, middleware.Audit(userRepo, models.AuditActionAttendanceMark, "attendance"), attendanceHandler.Mark)
		attendance.POST("/bulk", marker, middleware.Audit(userRepo, models.AuditActionAttendanceBulk, "attendance"), attendanceHandler.BulkMark)
		attendance.GET("/students/:id", attendanceHandler.StudentHistory)
	}

	analytics := api.Group("/analytics", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor))
	{
		analytics.GET("/overview", analyticsHandler.Overview)
		analytics.GET("/attendance", analyticsHandler.Attendance)
		analytics.GET("/standings", analyticsHandler.Standings)
		analytics.GET("/system", middleware.RequireRoles(models.RoleAdmin), analyticsHandler.System)
	}

	uploads := api.Group("/uploads", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		uploads.POST("/students", uploadHandler.Students)
		uploads.POST("/instructors", uploadHandler.Instructors)
	}

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		reports := api.Group("/reports", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleInstructor))
		{
			reports.POST("/generate", reportHandler.Generate)
			reports.GET("", reportHandler.ListMine)
			reports.GET("/:id/status", reportHandler.Status)
		}
		// The signed token itself authorises the download.
		api.GET("/export/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
