package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/config"
)

const extractionPollTimeout = 2 * time.Second

// ExtractionProcessor runs one extraction job.
type ExtractionProcessor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// ExtractionWorker pops job ids from the extraction queue and processes them
// one at a time. Provider calls are bounded by the processor's own timeout.
type ExtractionWorker struct {
	processor   ExtractionProcessor
	rdb         *redis.Client
	log         zerolog.Logger
	pollTimeout time.Duration
}

func NewExtractionWorker(processor ExtractionProcessor, rdb *redis.Client, log zerolog.Logger) *ExtractionWorker {
	return &ExtractionWorker{
		processor:   processor,
		rdb:         rdb,
		log:         log.With().Str("component", "extraction_worker").Logger(),
		pollTimeout: extractionPollTimeout,
	}
}

// Start runs until ctx is cancelled. A job in flight at shutdown is cut off
// and released back to pending, to be requeued at the next startup.
func (w *ExtractionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ExtractionWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, w.pollTimeout, config.WorkerKey.ExtractionQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(w.pollTimeout)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	id, err := uuid.Parse(result[1])
	if err != nil {
		w.log.Error().Str("payload", result[1]).Msg("Invalid job id, dropping")
		return
	}

	start := time.Now()
	if err := w.processor.Process(ctx, id); err != nil {
		w.log.Error().Err(err).Str("job_id", id.String()).Msg("Extraction job failed")
		return
	}
	w.log.Debug().Str("job_id", id.String()).Dur("took", time.Since(start)).Msg("Extraction job done")
}
