package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-admin/internal/model"
)

const extractionColumns = `id, subject_id, chapter_id, qbank_id, file_name, file_path, provider, options, status, error,
	raw_output, result, question_count, imported_count, created_by, started_at, finished_at, created_at, updated_at`

// ExtractionRepository tracks AI extraction jobs.
type ExtractionRepository struct {
	pool *pgxpool.Pool
}

// NewExtractionRepository creates a new ExtractionRepository.
func NewExtractionRepository(pool *pgxpool.Pool) *ExtractionRepository {
	return &ExtractionRepository{pool: pool}
}

func scanExtraction(row pgx.Row, j *model.ExtractionJob) error {
	var result []byte
	if err := row.Scan(&j.ID, &j.SubjectID, &j.ChapterID, &j.QBankID, &j.FileName, &j.FilePath, &j.Provider, &j.Options,
		&j.Status, &j.Error, &j.RawOutput, &result, &j.QuestionCount, &j.ImportedCount, &j.CreatedBy,
		&j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return err
	}
	if len(result) > 0 && string(result) != "null" {
		j.Result = &model.ExtractionResult{}
		return json.Unmarshal(result, j.Result)
	}
	return nil
}

// Create inserts a pending job.
func (r *ExtractionRepository) Create(ctx context.Context, j *model.ExtractionJob) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO extraction_jobs (subject_id, chapter_id, qbank_id, file_name, file_path, provider, options, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		j.SubjectID, j.ChapterID, j.QBankID, j.FileName, j.FilePath, j.Provider, j.Options, j.Status, j.CreatedBy,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	return mapError(err)
}

func (r *ExtractionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExtractionJob, error) {
	j := &model.ExtractionJob{}
	if err := scanExtraction(r.pool.QueryRow(ctx, `SELECT `+extractionColumns+` FROM extraction_jobs WHERE id = $1`, id), j); err != nil {
		return nil, mapError(err)
	}
	return j, nil
}

// List returns one page of jobs, newest first. Results are omitted.
func (r *ExtractionRepository) List(ctx context.Context, f model.ExtractionFilter) ([]model.ExtractionJob, int, error) {
	w := &where{}
	if f.JobStatus != "" {
		w.add("status = " + w.arg(f.JobStatus))
	}
	if f.SubjectID > 0 {
		w.add("subject_id = " + w.arg(f.SubjectID))
	}
	w.search(f.Search, "file_name")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM extraction_jobs`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + extractionColumns + ` FROM extraction_jobs` + w.sql() + ` ORDER BY created_at DESC`
	query += w.limit(f.ListQuery)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	jobs := []model.ExtractionJob{}
	for rows.Next() {
		var j model.ExtractionJob
		if err := scanExtraction(rows, &j); err != nil {
			return nil, 0, err
		}
		j.Result = nil
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

// MarkProcessing claims a pending job for a worker.
func (r *ExtractionRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx,
		`UPDATE extraction_jobs SET status = 'processing', error = '', started_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'`, id)
}

// Complete stores the model output and the validated result.
func (r *ExtractionRepository) Complete(ctx context.Context, id uuid.UUID, raw string, result *model.ExtractionResult) error {
	return r.transition(ctx,
		`UPDATE extraction_jobs
		 SET status = 'completed', raw_output = $2, result = $3, question_count = $4, finished_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`,
		id, raw, result, len(result.Questions))
}

// Fail records why a job could not be processed. raw may be empty.
func (r *ExtractionRepository) Fail(ctx context.Context, id uuid.UUID, reason, raw string) error {
	return r.transition(ctx,
		`UPDATE extraction_jobs
		 SET status = 'failed', error = $2, raw_output = $3, finished_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'processing')`,
		id, reason, raw)
}

// ImportQuestions marks a completed job imported and inserts its questions
// in one transaction. The job row lock serializes concurrent imports; the
// loser sees ErrStaleState and writes nothing.
func (r *ExtractionRepository) ImportQuestions(ctx context.Context, id uuid.UUID, qs []model.Question) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE extraction_jobs SET status = 'imported', imported_count = $2, updated_at = NOW()
			 WHERE id = $1 AND status = 'completed'`, id, len(qs))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleState
		}
		n, err = copyQuestions(ctx, tx, qs)
		return err
	})
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// Release hands a job cut off mid-run back to pending.
func (r *ExtractionRepository) Release(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx,
		`UPDATE extraction_jobs SET status = 'pending', started_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`, id)
}

// ResetProcessing returns every processing job to pending. Only one worker
// process runs, so at startup nothing can legitimately be in flight.
func (r *ExtractionRepository) ResetProcessing(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE extraction_jobs SET status = 'pending', started_at = NULL, updated_at = NOW()
		 WHERE status = 'processing'`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Requeue puts a failed job back to pending.
func (r *ExtractionRepository) Requeue(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx,
		`UPDATE extraction_jobs SET status = 'pending', error = '', started_at = NULL, finished_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND status = 'failed'`, id)
}

// ListPendingIDs returns jobs that were queued but never picked up.
func (r *ExtractionRepository) ListPendingIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM extraction_jobs WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ExtractionRepository) transition(ctx context.Context, query string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}
