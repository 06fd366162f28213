package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// Options tunes a queue-draining worker.
type Options struct {
	BatchSize      int
	BatchTimeout   time.Duration
	PollTimeout    time.Duration
	RequeueBackoff time.Duration
}

// DefaultOptions returns the production batching settings.
func DefaultOptions() Options {
	return Options{
		BatchSize:      BatchSize,
		BatchTimeout:   BatchTimeout,
		PollTimeout:    PollTimeout,
		RequeueBackoff: 2 * time.Second,
	}
}

// batchLoop drains a Redis list into a sink in batches. A failed bulk write
// falls back to row-by-row writes; rows that fail transiently go back on the queue.
type batchLoop[T any] struct {
	rdb    *redis.Client
	queue  string
	opts   Options
	log    zerolog.Logger
	bulk   func(context.Context, []T) error
	single func(context.Context, T) error
}

func (b *batchLoop[T]) run(ctx context.Context) {
	buffer := make([]T, 0, b.opts.BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= b.opts.BatchSize || time.Since(lastFlush) >= b.opts.BatchTimeout) {
			b.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			b.shutdown(buffer)
			return
		default:
		}

		result, err := b.rdb.BLPop(ctx, b.opts.PollTimeout, b.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			b.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleep(ctx, 3*time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
			b.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, item)
	}
}

func (b *batchLoop[T]) flushSafe(ctx context.Context, batch []T) {
	if len(batch) == 0 {
		return
	}
	err := b.bulk(ctx, batch)
	if err == nil {
		b.log.Debug().Int("count", len(batch)).Msg("Batch persisted")
		return
	}

	b.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	requeue := make([]T, 0)
	for _, item := range batch {
		if err := b.single(ctx, item); err != nil {
			if isPermanent(err) {
				b.log.Error().Err(err).Msg("Dropping row rejected by the database")
				continue
			}
			b.log.Error().Err(err).Msg("Insert failed, requeueing")
			requeue = append(requeue, item)
		}
	}
	if len(requeue) > 0 {
		b.requeue(ctx, requeue)
	}
}

func (b *batchLoop[T]) requeue(ctx context.Context, items []T) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	pipe := b.rdb.Pipeline()
	for _, item := range items {
		data, _ := json.Marshal(item)
		pipe.RPush(ctx, b.queue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		b.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	b.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	sleep(ctx, b.opts.RequeueBackoff)
}

func (b *batchLoop[T]) shutdown(buffer []T) {
	b.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.flushSafe(ctx, buffer)
}

// isPermanent reports database errors that retrying cannot fix:
// data exceptions (22) and integrity violations (23).
func isPermanent(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
