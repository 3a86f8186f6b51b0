package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/config"
	"github.com/stemsi/exstem-admin/internal/model"
)

const (
	AnswerBatchSize    = 50
	AnswerBatchTimeout = 2 * time.Second
	AnswerPollTimeout  = 1 * time.Second

	// AnswerMaxRetries bounds how often a failing row goes back on the queue.
	AnswerMaxRetries = 5
)

// AnswerStore persists autosaved answers.
type AnswerStore interface {
	UpsertAnswers(ctx context.Context, recs []model.AnswerRecord) error
}

// AnswerWorker consumes persist_answers_queue and batch-upserts answers into
// exam_answers.
type AnswerWorker struct {
	store AnswerStore
	rdb   *redis.Client
	log   zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(store AnswerStore, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		store:        store,
		rdb:          rdb,
		log:          log.With().Str("component", "answer_worker").Logger(),
		batchSize:    AnswerBatchSize,
		batchTimeout: AnswerBatchTimeout,
		pollTimeout:  AnswerPollTimeout,
	}
}

// Start runs the worker loop until ctx is cancelled, then flushes the
// pending batch and drains the queue. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]model.AnswerRecord, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			shutdownCtx := context.Background()
			w.flush(shutdownCtx, batch)
			w.drain(shutdownCtx)
			w.log.Info().Msg("Worker stopped")
			return
		default:
		}

		item, err := w.rdb.BLPop(ctx, w.pollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("BLPop error")
				time.Sleep(w.pollTimeout)
			}
			continue
		}
		if len(item) < 2 {
			continue
		}

		var rec model.AnswerRecord
		if err := json.Unmarshal([]byte(item[1]), &rec); err != nil {
			w.log.Error().Err(err).Msg("Invalid JSON payload")
			continue
		}
		batch = append(batch, rec)
	}
}

// flush upserts the batch in one statement, falling back to one row at a
// time so a single bad row cannot hold back the rest. Rows that still fail
// are pushed back onto the queue until they run out of retries.
func (w *AnswerWorker) flush(ctx context.Context, batch []model.AnswerRecord) {
	if len(batch) == 0 {
		return
	}

	err := w.store.UpsertAnswers(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Answers persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk answer upsert failed, using fallback")

	for _, rec := range batch {
		if err := w.store.UpsertAnswers(ctx, []model.AnswerRecord{rec}); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", rec.AttemptID).
				Str("question_id", rec.QuestionID).
				Msg("Answer upsert failed, requeueing")
			w.requeue(ctx, rec)
		}
	}
}

// requeue pushes a failed row back for another try. A row that has failed
// AnswerMaxRetries times is dropped; the answer is still in the attempt hash
// and gets merged on submit.
func (w *AnswerWorker) requeue(ctx context.Context, rec model.AnswerRecord) {
	rec.Retries++
	if rec.Retries >= AnswerMaxRetries {
		w.log.Error().
			Str("attempt_id", rec.AttemptID).
			Str("question_id", rec.QuestionID).
			Int("retries", rec.Retries).
			Msg("Answer dropped from queue after repeated failures")
		return
	}
	w.enqueue(ctx, rec)
}

func (w *AnswerWorker) enqueue(ctx context.Context, rec model.AnswerRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Msg("Requeue failed, answer stays in the attempt hash only")
	}
}

// drain persists everything left in the queue before shutdown. It stops at
// the first failed batch so the remaining items survive for the next start.
// Items put back here keep their retry count.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		items, err := w.rdb.LPopCount(ctx, config.WorkerKey.PersistAnswersQueue, w.batchSize).Result()
		if err != nil || len(items) == 0 {
			break
		}

		recs := make([]model.AnswerRecord, 0, len(items))
		for _, raw := range items {
			var rec model.AnswerRecord
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				w.log.Error().Err(err).Msg("Drain unmarshal error")
				continue
			}
			recs = append(recs, rec)
		}

		if err := w.store.UpsertAnswers(ctx, recs); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			for _, rec := range recs {
				w.enqueue(ctx, rec)
			}
			break
		}
		drained += len(recs)
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
