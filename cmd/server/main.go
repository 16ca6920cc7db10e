package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/database"
	"github.com/stemsi/classqa/internal/handler"
	"github.com/stemsi/classqa/internal/logger"
	"github.com/stemsi/classqa/internal/repository"
	"github.com/stemsi/classqa/internal/router"
	"github.com/stemsi/classqa/internal/service"
	"github.com/stemsi/classqa/internal/validator"
	ws "github.com/stemsi/classqa/internal/websocket"
	"github.com/stemsi/classqa/internal/worker"
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
		Msg("Starting classqa server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	ticketService := service.NewTicketService(cfg)
	userService := service.NewUserService(userRepo, log)
	codeService := service.NewClassCodeService(sessionRepo, rdb, log)
	sessionService := service.NewSessionService(sessionRepo, codeService, rdb, log)
	questionService := service.NewQuestionService(questionRepo, answerRepo, service.NewRedisLikeLedger(rdb), log)
	settingService := service.NewSettingService(settingRepo, log)

	// ─── Start Room Hub ────────────────────────────────────────────────
	hub := ws.NewHub(rdb, log)
	go hub.Run(ctx)

	// ─── Initialize Handlers ──────────────────────────────────────────
	deps := map[string]handler.Pinger{
		"postgres": handler.PingFunc(database.PostgresPinger(pool)),
		"redis":    handler.PingFunc(database.RedisPinger(rdb)),
	}
	handlers := &router.Handlers{
		Health:      handler.NewHealthHandler(deps, hub, log),
		Participant: handler.NewParticipantHandler(userService, ticketService, log),
		Class:       handler.NewClassHandler(codeService),
		Session:     handler.NewSessionHandler(sessionService, questionService, hub, log),
		Setting:     handler.NewSettingHandler(settingService),
		WS: handler.NewWSHandler(codeService, sessionService, questionService, hub,
			cfg.ReplyTimeout, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	likeWorker := worker.NewLikeWorker(answerRepo, rdb, log)
	retentionWorker := worker.NewRetentionWorker(settingService, sessionRepo, sessionService, cfg.RetentionInterval, log)

	workers.Add(2)
	go func() { defer workers.Done(); likeWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); retentionWorker.Start(workerCtx) }()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ticketService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the hub so sockets close, then let workers drain their queues.
	cancel()
	workerCancel()

	done := make(chan struct{})
	go func() { workers.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Workers did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
