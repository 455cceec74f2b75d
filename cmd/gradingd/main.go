package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/app"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/database"
	"github.com/stemsi/exstem-grading/internal/logger"
	"github.com/stemsi/exstem-grading/internal/service"
	"github.com/stemsi/exstem-grading/internal/worker"
)

// lockMargin is added to the grading budget for the per-answer lock TTL.
const lockMargin = 30 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().
		Str("store", string(cfg.StoreDriver)).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem grading daemon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Record Store ─────────────────────────────────────────────
	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer closeStore()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if rdb == nil {
		log.Fatal().Msg("REDIS_URL is required: the daemon consumes the essay grading queue")
	}
	defer rdb.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	essayGrader := app.EssayGrader(cfg, log)
	submissions := service.NewSubmissionService(store, essayGrader, worker.NewEssayQueue(rdb), log)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	essayWorker := worker.NewEssayWorker(rdb, submissions, cfg.QueuePollTimeout, cfg.TotalBudget+lockMargin, log)
	go func() {
		essayWorker.Start(workerCtx)
		close(done)
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// Stop the worker and wait for the queue to drain.
	workerCancel()
	<-done

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
