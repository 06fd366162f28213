package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Queue pushes JSON jobs onto Redis lists drained by the workers.
type Queue struct {
	rdb *redis.Client
}

func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue appends v to the named queue.
func (q *Queue) Enqueue(ctx context.Context, queue string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s job: %w", queue, err)
	}
	if err := q.rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("push %s job: %w", queue, err)
	}
	return nil
}
