package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/translation-kpi/internal/config"
	"github.com/ignatzorin/translation-kpi/internal/db"
	httpHandlers "github.com/ignatzorin/translation-kpi/internal/http/handlers"
	httpRouter "github.com/ignatzorin/translation-kpi/internal/http/router"
	"github.com/ignatzorin/translation-kpi/internal/infrastructure/lock"
	"github.com/ignatzorin/translation-kpi/internal/infrastructure/persistence"
	"github.com/ignatzorin/translation-kpi/internal/interface/http/handler"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/service"
	"github.com/ignatzorin/translation-kpi/internal/usecase/project"
	"github.com/ignatzorin/translation-kpi/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Блокировка генерации месяца: Redis, если настроен, иначе в пределах процесса.
	var (
		locker      service.GenerationLocker = lock.NewMemoryLocker()
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Log.Fatalf("main: ошибка подключения к Redis: %v", err)
		}
		defer func() { _ = redisClient.Close() }()
		locker = lock.NewRedisLocker(redisClient)
		logger.Log.Info("main: блокировка генерации KPI через Redis")
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	// Репозитории.
	projectRepo := persistence.NewProjectRepositoryAdapter(dbConn)
	kpiRepo := persistence.NewKPIRepositoryAdapter(dbConn)
	staffDirectory := persistence.NewStaffDirectoryAdapter(dbConn)
	coefficientRepo := persistence.NewCoefficientRepositoryAdapter(dbConn)
	notificationRepo := persistence.NewNotificationRepositoryAdapter(dbConn)

	// Сервисы.
	cache := service.NewCacheService()
	defer cache.Close()

	coefficientService := service.NewCoefficientService(coefficientRepo)
	notificationService := service.NewNotificationService(notificationRepo)
	generationService := service.NewKPIGenerationService(projectRepo, kpiRepo, staffDirectory, coefficientService, locker, cfg.KPILocation, cfg.GenerationLockTTL)
	reviewService := service.NewKPIReviewService(kpiRepo)
	previewService := service.NewKPIPreviewService(projectRepo, coefficientService, cache, cfg.PreviewCacheTTL, cfg.KPILocation)

	// Вебсокеты.
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()

	// Сценарии проектов.
	projectHandler := handler.NewProjectHandler(handler.ProjectUseCases{
		Create:           project.NewCreateProjectUseCase(projectRepo, coefficientService, hub, cache),
		Get:              project.NewGetProjectUseCase(projectRepo),
		List:             project.NewListProjectsUseCase(projectRepo),
		Update:           project.NewUpdateProjectUseCase(projectRepo, cache),
		History:          project.NewProjectHistoryUseCase(projectRepo),
		AddMember:        project.NewAddMemberUseCase(projectRepo, hub, cache),
		RemoveMember:     project.NewRemoveMemberUseCase(projectRepo, cache),
		AcceptAssignment: project.NewAcceptAssignmentUseCase(projectRepo, hub, cache),
		RejectAssignment: project.NewRejectAssignmentUseCase(projectRepo, hub, cache, cfg.RejectionReasonMax),
		Start:            project.NewStartProjectUseCase(projectRepo, cache),
		Advance:          project.NewAdvanceStatusUseCase(projectRepo, cache),
		Complete:         project.NewCompleteProjectUseCase(projectRepo, generationService, hub, cache),
		Cancel:           project.NewCancelProjectUseCase(projectRepo, cache),
	})

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, tokenManager, httpRouter.Handlers{
		Health:       httpHandlers.NewHealthHandler(dbConn, redisClient),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Notification: httpHandlers.NewNotificationHandler(notificationService),
		Project:      projectHandler,
		KPI:          handler.NewKPIHandler(coefficientService, generationService, reviewService, previewService),
		Coefficient:  handler.NewCoefficientHandler(coefficientService),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Errorf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	logger.Log.Infof("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.Errorf("main: ошибка закрытия базы: %v", err)
	}
}
