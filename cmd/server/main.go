package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/ai"
	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/database"
	"github.com/stemsi/exstem-admin/internal/handler"
	"github.com/stemsi/exstem-admin/internal/logger"
	"github.com/stemsi/exstem-admin/internal/middleware"
	"github.com/stemsi/exstem-admin/internal/repository"
	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/router"
	"github.com/stemsi/exstem-admin/internal/service"
	"github.com/stemsi/exstem-admin/internal/validator"
	"github.com/stemsi/exstem-admin/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Admin")
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	validator.Setup()
	response.SetDefaultLocale(cfg.DefaultLocale)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	gdb, err := database.NewGorm(pool, cfg.SlowQuery, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open gorm session")
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	schoolRepo := repository.NewSchoolRepository(gdb)
	levelRepo := repository.NewClassLevelRepository(gdb)
	subjectRepo := repository.NewSubjectRepository(gdb)
	chapterRepo := repository.NewChapterRepository(gdb)
	bankRepo := repository.NewQuestionBankRepository(gdb)
	structureRepo := repository.NewExamStructureRepository(gdb)
	userRepo := repository.NewUserRepository(gdb)
	roleRepo := repository.NewRoleRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	examRepo := repository.NewScheduledExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	extractionRepo := repository.NewExtractionRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, userRepo, roleRepo, log)
	schoolService := service.NewSchoolService(schoolRepo, log)
	levelService := service.NewClassLevelService(levelRepo)
	subjectService := service.NewSubjectService(subjectRepo, levelRepo, log)
	chapterService := service.NewChapterService(chapterRepo, subjectRepo)
	bankService := service.NewQuestionBankService(bankRepo, subjectRepo)
	questionService := service.NewQuestionService(questionRepo, subjectRepo, chapterRepo, bankRepo, log)
	structureService := service.NewExamStructureService(structureRepo, levelRepo, subjectRepo, chapterRepo, questionRepo, log)
	examService := service.NewScheduledExamService(examRepo, structureRepo, schoolRepo, questionRepo, rdb, log)
	attemptService := service.NewAttemptService(attemptRepo, examRepo, examService, userRepo, rdb, log)
	userService := service.NewUserService(userRepo, roleRepo, schoolRepo, levelRepo, authService, log)
	roleService := service.NewRoleService(roleRepo)
	settingService := service.NewSettingService(settingRepo, log)
	if err := settingService.ApplyStoredLocale(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not load default_locale setting")
	}
	dashboardService := service.NewDashboardService(dashboardRepo)
	mediaService := service.NewMediaService(cfg)
	monitorService := service.NewMonitorService(monitorRepo, rdb)
	providers := ai.NewRegistry(cfg.AI, log)
	extractionService := service.NewExtractionService(
		extractionRepo, subjectRepo, chapterRepo, bankRepo, questionService, providers, rdb, cfg, log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, userService),
		StudentPortal: handler.NewStudentPortalHandler(userService, examService, attemptService),
		School:        handler.NewSchoolHandler(schoolService),
		ClassLevel:    handler.NewClassLevelHandler(levelService),
		Subject:       handler.NewSubjectHandler(subjectService, chapterService),
		Question:      handler.NewQuestionHandler(questionService, bankService),
		Exam:          handler.NewExamHandler(structureService, examService, attemptService),
		Extraction:    handler.NewExtractionHandler(extractionService, cfg.MaxPDFBytes),
		User:          handler.NewUserHandler(userService, authService),
		Role:          handler.NewRoleHandler(roleService),
		Setting:       handler.NewSettingHandler(settingService),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Media:         handler.NewMediaHandler(mediaService),
		Monitor:       handler.NewMonitorHandler(examService, monitorService, log),
		WS:            handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Health:        handler.NewHealthHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	runWorker := func(start func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			start(workerCtx)
		}()
	}

	limiters := router.Limiters{
		Login:      middleware.NewRateLimiter(30, time.Minute),
		Extraction: middleware.NewRateLimiter(10, time.Minute),
	}
	runWorker(limiters.Login.RunCleanup)
	runWorker(limiters.Extraction.RunCleanup)
	runWorker(worker.NewAnswerWorker(attemptRepo, rdb, log).Start)
	runWorker(worker.NewExtractionWorker(extractionService, rdb, log).Start)

	scheduler, err := worker.NewScheduler(examService, attemptService, cfg.ExamStatusCron, cfg.AttemptExpiryCron, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid scheduler configuration")
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Papers of scheduled and live exams are loaded before accepting
	// traffic so the first wave of students does not race to build them.
	if err := examService.SyncStatuses(ctx, time.Now()); err != nil {
		log.Warn().Err(err).Msg("Initial exam status sync failed")
	}
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}
	if _, err := extractionService.RequeuePending(ctx); err != nil {
		log.Warn().Err(err).Msg("Requeue of pending extraction jobs failed")
	}
	scheduler.Start()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiters, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop cron jobs, then let the workers flush and drain their queues.
	scheduler.Stop(shutdownCtx)
	workerCancel()

	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Workers did not finish before the shutdown deadline")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
