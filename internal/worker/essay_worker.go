package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/grading"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/service"
)

const (
	EssayMaxAttempts = 5
	EssayRetryDelay  = 5 * time.Second
)

// releaseLock deletes the grading lock only while it still holds the caller's
// token, so a lock that expired and was taken by another worker survives.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// EssayGrader grades one queued essay revision.
type EssayGrader interface {
	GradeEssay(ctx context.Context, job service.EssayJob) (grading.Outcome, error)
}

// essayPayload is the queue item: the job plus how often it was retried.
type essayPayload struct {
	service.EssayJob
	Attempts int `json:"attempts,omitempty"`
}

// EssayWorker consumes grade_essays_queue and scores subjective essays.
type EssayWorker struct {
	rdb         *redis.Client
	grader      EssayGrader
	pollTimeout time.Duration
	lockTTL     time.Duration
	retryDelay  time.Duration
	log         zerolog.Logger
}

// NewEssayWorker creates a new EssayWorker. lockTTL should exceed the
// subjective grading budget so a lock never expires mid-grade.
func NewEssayWorker(rdb *redis.Client, grader EssayGrader, pollTimeout, lockTTL time.Duration, log zerolog.Logger) *EssayWorker {
	return &EssayWorker{
		rdb:         rdb,
		grader:      grader,
		pollTimeout: pollTimeout,
		lockTTL:     lockTTL,
		retryDelay:  EssayRetryDelay,
		log:         log.With().Str("component", "essay_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *EssayWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *EssayWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, w.pollTimeout, config.WorkerKey.GradeEssaysQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if w.handle(ctx, result[1]) {
		// Back off before the retry is picked up again.
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// handle grades one raw queue item under a per-answer lock and reports
// whether it was requeued.
func (w *EssayWorker) handle(ctx context.Context, raw string) bool {
	var p essayPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return false
	}

	lockKey := config.CacheKey.EssayGradingLockKey(p.AnswerID.String())
	token := uuid.NewString()
	locked, err := w.rdb.SetNX(ctx, lockKey, token, w.lockTTL).Result()
	if err != nil {
		w.log.Error().Err(err).Str("answer_id", p.AnswerID.String()).Msg("Grading lock error")
		return w.requeue(ctx, p)
	}
	if !locked {
		// Another worker holds this answer; retry once it is released.
		return w.requeue(ctx, p)
	}
	defer w.unlock(lockKey, token)

	if w.grade(ctx, p) {
		p.Attempts++
		return w.requeue(ctx, p)
	}
	return false
}

// grade runs the job and reports whether it should be retried. Stale and
// deleted answers are dropped.
func (w *EssayWorker) grade(ctx context.Context, p essayPayload) bool {
	log := w.log.With().
		Str("answer_id", p.AnswerID.String()).
		Int("revision", p.Revision).
		Logger()

	outcome, err := w.grader.GradeEssay(ctx, p.EssayJob)
	switch {
	case err == nil:
		log.Info().
			Str("outcome", string(outcome.Kind)).
			Float64("score", outcome.Score).
			Msg("Essay graded")
		return false
	case errors.Is(err, model.ErrStaleAnswer), errors.Is(err, model.ErrNotFound):
		log.Debug().Err(err).Msg("Essay job dropped")
		return false
	case p.Attempts+1 >= EssayMaxAttempts:
		log.Error().Err(err).Int("attempts", p.Attempts+1).Msg("Essay grading failed, giving up")
		return false
	default:
		log.Warn().Err(err).Int("attempts", p.Attempts+1).Msg("Essay grading failed, requeueing")
		return true
	}
}

func (w *EssayWorker) unlock(lockKey, token string) {
	if err := releaseLock.Run(context.Background(), w.rdb, []string{lockKey}, token).Err(); err != nil {
		w.log.Warn().Err(err).Str("lock", lockKey).Msg("Grading lock release failed")
	}
}

func (w *EssayWorker) requeue(ctx context.Context, p essayPayload) bool {
	raw, _ := json.Marshal(p)
	if err := w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.GradeEssaysQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Str("answer_id", p.AnswerID.String()).Msg("Requeue failed")
		return false
	}
	return true
}

// drain grades every item still queued before shutdown.
func (w *EssayWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.GradeEssaysQueue).Result()
		if err != nil {
			break
		}
		if w.handle(ctx, result) {
			// The item went back on the queue; stop rather than spin on it.
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
