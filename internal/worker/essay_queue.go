package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/service"
)

// EssayQueue pushes subjective essay jobs onto the Redis grading queue.
type EssayQueue struct {
	rdb *redis.Client
}

// NewEssayQueue creates a new EssayQueue.
func NewEssayQueue(rdb *redis.Client) *EssayQueue {
	return &EssayQueue{rdb: rdb}
}

// Enqueue appends job to the grading queue.
func (q *EssayQueue) Enqueue(ctx context.Context, job service.EssayJob) error {
	raw, err := json.Marshal(essayPayload{EssayJob: job})
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.GradeEssaysQueue, raw).Err(); err != nil {
		return fmt.Errorf("push essay job: %w", err)
	}
	return nil
}

var _ service.EssayQueue = (*EssayQueue)(nil)
