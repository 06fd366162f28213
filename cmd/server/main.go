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

	"github.com/stemsi/jlpt-proctor/internal/anticheat"
	"github.com/stemsi/jlpt-proctor/internal/config"
	"github.com/stemsi/jlpt-proctor/internal/database"
	"github.com/stemsi/jlpt-proctor/internal/events"
	"github.com/stemsi/jlpt-proctor/internal/exam"
	"github.com/stemsi/jlpt-proctor/internal/handler"
	"github.com/stemsi/jlpt-proctor/internal/logger"
	"github.com/stemsi/jlpt-proctor/internal/repository"
	"github.com/stemsi/jlpt-proctor/internal/router"
	"github.com/stemsi/jlpt-proctor/internal/service"
	"github.com/stemsi/jlpt-proctor/internal/validator"
	"github.com/stemsi/jlpt-proctor/internal/worker"
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
		Msg("Starting JLPT proctor backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Anti-cheat Policy ─────────────────────────────────────────────
	policy, err := anticheat.LoadPolicy(cfg.AntiCheatPolicyPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.AntiCheatPolicyPath).Msg("Anti-cheat policy rejected, using defaults")
	}
	log.Info().
		Int("max_violations", policy.MaxViolations).
		Int("grace_period_ms", policy.GracePeriodMs).
		Bool("in_practice", cfg.AntiCheatInPractice).
		Msg("Anti-cheat policy loaded")

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Event Bus ─────────────────────────────────────────────────────
	bus, err := events.NewBus(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create event bus")
	}
	defer bus.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	questionRepo := repository.NewQuestionRepository(pool)
	historyRepo := repository.NewPracticeHistoryRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	sessionService := service.NewExamSessionService(cfg, service.ExamSessionDeps{
		Questions: questionRepo,
		History:   historyRepo,
		Store:     exam.NewRedisStore(rdb, cfg.PracticeStateTTL),
		Queue:     worker.NewQueue(rdb),
		Events:    bus,
		Policy:    policy,
	}, log)
	monitorService := service.NewMonitorService(violationRepo, bus, sessionService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:    handler.NewExamHandler(sessionService, log),
		WS:      handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Monitor: handler.NewMonitorHandler(monitorService, log),
		System:  handler.NewSystemHandler(rdb, pool, sessionService, bus.Backend(), log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	opts := worker.DefaultOptions()
	if cfg.WorkerBatch > 0 {
		opts.BatchSize = cfg.WorkerBatch
	}
	violationWorker := worker.NewViolationWorker(violationRepo, rdb, opts, log)
	historyWorker := worker.NewHistoryWorker(historyRepo, rdb, opts, log)

	workers.Add(3)
	go func() { defer workers.Done(); violationWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); historyWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); sessionService.RunReaper(workerCtx) }()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
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

	// 1. Stop accepting new HTTP requests (5s timeout). Hijacked WebSocket
	// connections are not tracked by Shutdown and end with their sessions.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Close live attempts so practice progress reaches Redis.
	sessionService.Shutdown()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
