package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/config"
	"github.com/stemsi/jlpt-proctor/internal/model"
)

// ViolationSink stores anti-cheat violations.
type ViolationSink interface {
	CopyBatch(ctx context.Context, recs []model.ViolationRecord) (int64, error)
	Insert(ctx context.Context, rec model.ViolationRecord) error
}

// ViolationWorker moves queued violations into the audit log.
type ViolationWorker struct {
	loop batchLoop[model.ViolationRecord]
}

func NewViolationWorker(sink ViolationSink, rdb *redis.Client, opts Options, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{loop: batchLoop[model.ViolationRecord]{
		rdb:   rdb,
		queue: config.WorkerKey.PersistViolationsQueue,
		opts:  opts,
		log:   log.With().Str("component", "violation_worker").Logger(),
		bulk: func(ctx context.Context, recs []model.ViolationRecord) error {
			_, err := sink.CopyBatch(ctx, recs)
			return err
		},
		single: sink.Insert,
	}}
}

// Start blocks until ctx is cancelled, flushing what is buffered on the way out.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.loop.log.Info().Msg("ViolationWorker started")
	w.loop.run(ctx)
}
