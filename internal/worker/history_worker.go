package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/config"
	"github.com/stemsi/jlpt-proctor/internal/model"
)

// HistorySink stores finished attempts.
type HistorySink interface {
	InsertBatch(ctx context.Context, recs []model.PracticeRecord) error
	Insert(ctx context.Context, rec model.PracticeRecord) error
}

// HistoryWorker moves queued attempt results into practice history.
type HistoryWorker struct {
	loop batchLoop[model.PracticeRecord]
}

func NewHistoryWorker(sink HistorySink, rdb *redis.Client, opts Options, log zerolog.Logger) *HistoryWorker {
	return &HistoryWorker{loop: batchLoop[model.PracticeRecord]{
		rdb:    rdb,
		queue:  config.WorkerKey.PersistHistoryQueue,
		opts:   opts,
		log:    log.With().Str("component", "history_worker").Logger(),
		bulk:   sink.InsertBatch,
		single: sink.Insert,
	}}
}

// Start blocks until ctx is cancelled, flushing what is buffered on the way out.
func (w *HistoryWorker) Start(ctx context.Context) {
	w.loop.log.Info().Msg("HistoryWorker started")
	w.loop.run(ctx)
}
