package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-admin/internal/model"
)

const attemptColumns = `a.id, a.exam_id, a.user_id, a.status, a.started_at, a.expires_at, a.submitted_at, a.score,
	a.max_score, a.correct_count, a.wrong_count, a.unanswered_count, a.pending_count, a.is_active,
	a.created_at, a.updated_at`

// AttemptRepository handles exam attempts and their answers.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func attemptDest(a *model.ExamAttempt) []interface{} {
	return []interface{}{&a.ID, &a.ExamID, &a.UserID, &a.Status, &a.StartedAt, &a.ExpiresAt, &a.SubmittedAt, &a.Score,
		&a.MaxScore, &a.CorrectCount, &a.WrongCount, &a.UnansweredCount, &a.PendingCount, &a.IsActive,
		&a.CreatedAt, &a.UpdatedAt}
}

// Create inserts a new in-progress attempt. A second active attempt for the
// same exam and student violates a partial unique index.
func (r *AttemptRepository) Create(ctx context.Context, a *model.ExamAttempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (exam_id, user_id, status, started_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, is_active, created_at, updated_at`,
		a.ExamID, a.UserID, a.Status, a.StartedAt, a.ExpiresAt,
	).Scan(&a.ID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return mapError(err)
}

// GetByID retrieves an attempt, active or not.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	err := r.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM exam_attempts a WHERE a.id = $1`, id).Scan(attemptDest(a)...)
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// GetActive returns the student's live (not reset) attempt for an exam.
func (r *AttemptRepository) GetActive(ctx context.Context, examID uuid.UUID, userID int) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a
		 WHERE a.exam_id = $1 AND a.user_id = $2 AND a.is_active = TRUE`, examID, userID,
	).Scan(attemptDest(a)...)
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// ListByExam returns one page of an exam's attempts with student names.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID, f model.AttemptFilter) ([]model.ExamAttempt, int, error) {
	w := &where{}
	w.add("a.exam_id = " + w.arg(examID))
	w.status("a.is_active", f.Status)
	if f.AttemptStatus != "" {
		w.add("a.status = " + w.arg(f.AttemptStatus))
	}
	w.search(f.Search, "p.full_name", "u.email", "p.roll_number")

	from := ` FROM exam_attempts a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN profiles p ON p.user_id = u.id`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + attemptColumns + `, COALESCE(p.full_name, ''), u.email` + from + w.sql() +
		` ORDER BY p.full_name NULLS LAST, a.started_at`
	query += w.limit(f.ListQuery)

	attempts, err := r.collectWithStudent(ctx, query, w.args...)
	return attempts, total, err
}

// ListForExport returns every active attempt of an exam, best score first.
func (r *AttemptRepository) ListForExport(ctx context.Context, examID uuid.UUID) ([]model.ExamAttempt, error) {
	return r.collectWithStudent(ctx,
		`SELECT `+attemptColumns+`, COALESCE(p.full_name, ''), u.email
		 FROM exam_attempts a
		 JOIN users u ON u.id = a.user_id
		 LEFT JOIN profiles p ON p.user_id = u.id
		 WHERE a.exam_id = $1 AND a.is_active = TRUE
		 ORDER BY a.score DESC NULLS LAST, p.full_name`, examID)
}

func (r *AttemptRepository) collectWithStudent(ctx context.Context, query string, args ...interface{}) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []model.ExamAttempt{}
	for rows.Next() {
		var a model.ExamAttempt
		dest := append(attemptDest(&a), &a.StudentName, &a.StudentEmail)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListOverdue returns in-progress attempts past their deadline.
func (r *AttemptRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.ExamAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts a
		 WHERE a.status = 'in_progress' AND a.is_active = TRUE AND a.expires_at <= $1
		 ORDER BY a.expires_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []model.ExamAttempt{}
	for rows.Next() {
		var a model.ExamAttempt
		if err := rows.Scan(attemptDest(&a)...); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// SetActive resets (soft-deletes) or restores an attempt.
func (r *AttemptRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE exam_attempts SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Answers returns the stored answers of an attempt keyed by question.
func (r *AttemptRepository) Answers(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]json.RawMessage, error) {
	rows, err := r.pool.Query(ctx, `SELECT question_id, answer FROM exam_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[uuid.UUID]json.RawMessage)
	for rows.Next() {
		var qid uuid.UUID
		var ans json.RawMessage
		if err := rows.Scan(&qid, &ans); err != nil {
			return nil, err
		}
		answers[qid] = ans
	}
	return answers, rows.Err()
}

// AnswerRows returns the graded answer rows of an attempt.
func (r *AttemptRepository) AnswerRows(ctx context.Context, attemptID uuid.UUID) ([]model.ExamAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, question_id, answer, is_correct, marks_awarded, updated_at
		 FROM exam_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExamAnswer
	for rows.Next() {
		var a model.ExamAnswer
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &a.Answer, &a.IsCorrect, &a.MarksAwarded, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// dedupeAnswers keeps the newest record per (attempt, question). A single
// upsert statement cannot touch the same row twice.
func dedupeAnswers(recs []model.AnswerRecord) []model.AnswerRecord {
	type key struct{ attempt, question string }
	latest := make(map[key]int, len(recs))
	out := make([]model.AnswerRecord, 0, len(recs))
	for _, rec := range recs {
		k := key{rec.AttemptID, rec.QuestionID}
		if i, ok := latest[k]; ok {
			if !rec.SavedAt.Before(out[i].SavedAt) {
				out[i] = rec
			}
			continue
		}
		latest[k] = len(out)
		out = append(out, rec)
	}
	return out
}

// UpsertAnswers writes autosaved answers in one statement. Rows for attempts
// that are no longer in progress are skipped, and an older save never
// overwrites a newer one.
func (r *AttemptRepository) UpsertAnswers(ctx context.Context, recs []model.AnswerRecord) error {
	recs = dedupeAnswers(recs)
	if len(recs) == 0 {
		return nil
	}

	attemptIDs := make([]string, len(recs))
	questionIDs := make([]string, len(recs))
	answers := make([]string, len(recs))
	savedAt := make([]time.Time, len(recs))
	for i, rec := range recs {
		attemptIDs[i] = rec.AttemptID
		questionIDs[i] = rec.QuestionID
		answers[i] = string(rec.Answer)
		if len(rec.Answer) == 0 {
			answers[i] = "null"
		}
		savedAt[i] = rec.SavedAt
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_answers (attempt_id, question_id, answer, updated_at)
		 SELECT t.attempt_id, t.question_id, t.answer::jsonb, t.saved_at
		 FROM UNNEST($1::uuid[], $2::uuid[], $3::text[], $4::timestamptz[]) AS t(attempt_id, question_id, answer, saved_at)
		 JOIN exam_attempts a ON a.id = t.attempt_id AND a.status = 'in_progress'
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = EXCLUDED.updated_at
		 WHERE exam_answers.updated_at <= EXCLUDED.updated_at`,
		attemptIDs, questionIDs, answers, savedAt)
	return err
}

// Finalize closes an attempt and stores the graded answers in one
// transaction. It returns ErrStaleState if the attempt was already closed.
func (r *AttemptRepository) Finalize(ctx context.Context, attemptID uuid.UUID, res model.AttemptResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE exam_attempts
		 SET status = $1, submitted_at = $2, score = $3, max_score = $4, correct_count = $5, wrong_count = $6,
		     unanswered_count = $7, pending_count = $8, updated_at = NOW()
		 WHERE id = $9 AND status = 'in_progress'`,
		res.Status, res.SubmittedAt, res.Score, res.MaxScore, res.CorrectCount, res.WrongCount,
		res.UnansweredCount, res.PendingCount, attemptID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}

	if len(res.Answers) > 0 {
		questionIDs := make([]uuid.UUID, len(res.Answers))
		answers := make([]string, len(res.Answers))
		correct := make([]*bool, len(res.Answers))
		marks := make([]float64, len(res.Answers))
		for i, a := range res.Answers {
			questionIDs[i] = a.QuestionID
			answers[i] = string(a.Answer)
			if len(a.Answer) == 0 {
				answers[i] = "null"
			}
			correct[i] = a.IsCorrect
			marks[i] = a.MarksAwarded
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO exam_answers (attempt_id, question_id, answer, is_correct, marks_awarded, updated_at)
			 SELECT $1, t.question_id, t.answer::jsonb, t.is_correct, t.marks, NOW()
			 FROM UNNEST($2::uuid[], $3::text[], $4::bool[], $5::float8[]) AS t(question_id, answer, is_correct, marks)
			 ON CONFLICT (attempt_id, question_id) DO UPDATE
			 SET answer = EXCLUDED.answer, is_correct = EXCLUDED.is_correct,
			     marks_awarded = EXCLUDED.marks_awarded, updated_at = NOW()`,
			attemptID, questionIDs, answers, correct, marks)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// QuestionStats reports per-question correctness over closed attempts.
func (r *AttemptRepository) QuestionStats(ctx context.Context, examID uuid.UUID) ([]model.QuestionStat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT eq.question_id, eq.order_num, q.question_text,
		        COUNT(ans.question_id) FILTER (WHERE ans.answer IS NOT NULL AND ans.answer <> 'null'::jsonb),
		        COUNT(ans.question_id) FILTER (WHERE ans.is_correct)
		 FROM exam_questions eq
		 JOIN questions q ON q.id = eq.question_id
		 LEFT JOIN exam_attempts a ON a.exam_id = eq.exam_id AND a.is_active = TRUE AND a.status <> 'in_progress'
		 LEFT JOIN exam_answers ans ON ans.attempt_id = a.id AND ans.question_id = eq.question_id
		 WHERE eq.exam_id = $1
		 GROUP BY eq.question_id, eq.order_num, q.question_text
		 ORDER BY eq.order_num`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []model.QuestionStat{}
	for rows.Next() {
		var s model.QuestionStat
		if err := rows.Scan(&s.QuestionID, &s.OrderNum, &s.QuestionText, &s.Answered, &s.Correct); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// CountSince counts active attempts started at or after since.
func (r *AttemptRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exam_attempts WHERE started_at >= $1 AND is_active = TRUE`, since).Scan(&n)
	return n, err
}
