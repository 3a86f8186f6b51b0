package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-admin/internal/model"
)

const examColumns = `e.id, e.structure_id, e.school_id, e.title, e.class_level_id, e.subject_id, e.start_at, e.end_at,
	e.duration_minutes, e.status, e.shuffle_questions, e.show_results, e.instructions, e.question_count,
	e.total_marks, e.created_by, e.is_active, e.created_at, e.updated_at`

// ScheduledExamRepository handles scheduled exams and their frozen papers.
type ScheduledExamRepository struct {
	pool *pgxpool.Pool
}

// NewScheduledExamRepository creates a new ScheduledExamRepository.
func NewScheduledExamRepository(pool *pgxpool.Pool) *ScheduledExamRepository {
	return &ScheduledExamRepository{pool: pool}
}

func scanExam(row pgx.Row, e *model.ScheduledExam) error {
	return row.Scan(&e.ID, &e.StructureID, &e.SchoolID, &e.Title, &e.ClassLevelID, &e.SubjectID, &e.StartAt, &e.EndAt,
		&e.DurationMinutes, &e.Status, &e.ShuffleQuestions, &e.ShowResults, &e.Instructions, &e.QuestionCount,
		&e.TotalMarks, &e.CreatedBy, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
}

// Create inserts a new exam.
func (r *ScheduledExamRepository) Create(ctx context.Context, e *model.ScheduledExam) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO scheduled_exams (structure_id, school_id, title, class_level_id, subject_id, start_at, end_at,
		                              duration_minutes, status, shuffle_questions, show_results, instructions, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, is_active, created_at, updated_at`,
		e.StructureID, e.SchoolID, e.Title, e.ClassLevelID, e.SubjectID, e.StartAt, e.EndAt,
		e.DurationMinutes, e.Status, e.ShuffleQuestions, e.ShowResults, e.Instructions, e.CreatedBy,
	).Scan(&e.ID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	return mapError(err)
}

// GetByID retrieves an exam by its UUID.
func (r *ScheduledExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduledExam, error) {
	e := &model.ScheduledExam{}
	if err := scanExam(r.pool.QueryRow(ctx, `SELECT `+examColumns+` FROM scheduled_exams e WHERE e.id = $1`, id), e); err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

// List returns one page of exams, latest start first.
func (r *ScheduledExamRepository) List(ctx context.Context, f model.ScheduledExamFilter) ([]model.ScheduledExam, int, error) {
	w := &where{}
	w.status("e.is_active", f.Status)
	if f.ExamStatus != "" {
		w.add("e.status = " + w.arg(f.ExamStatus))
	}
	if f.ClassLevelID > 0 {
		w.add("e.class_level_id = " + w.arg(f.ClassLevelID))
	}
	if f.SubjectID > 0 {
		w.add("e.subject_id = " + w.arg(f.SubjectID))
	}
	if f.SchoolID > 0 {
		w.add("e.school_id = " + w.arg(f.SchoolID))
	}
	if !f.From.IsZero() {
		w.add("e.start_at >= " + w.arg(f.From))
	}
	if !f.To.IsZero() {
		w.add("e.start_at < " + w.arg(f.To.AddDate(0, 0, 1)))
	}
	w.search(f.Search, "e.title")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scheduled_exams e`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + examColumns + ` FROM scheduled_exams e` + w.sql() + ` ORDER BY e.start_at DESC, e.id`
	query += w.limit(f.ListQuery)

	exams, err := r.collect(ctx, query, w.args...)
	return exams, total, err
}

func (r *ScheduledExamRepository) collect(ctx context.Context, query string, args ...interface{}) ([]model.ScheduledExam, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []model.ScheduledExam{}
	for rows.Next() {
		var e model.ScheduledExam
		if err := scanExam(rows, &e); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// Update rewrites an exam's settings.
func (r *ScheduledExamRepository) Update(ctx context.Context, e *model.ScheduledExam) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE scheduled_exams
		 SET school_id = $1, title = $2, start_at = $3, end_at = $4, duration_minutes = $5,
		     shuffle_questions = $6, show_results = $7, instructions = $8, updated_at = NOW()
		 WHERE id = $9`,
		e.SchoolID, e.Title, e.StartAt, e.EndAt, e.DurationMinutes,
		e.ShuffleQuestions, e.ShowResults, e.Instructions, e.ID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive soft-deletes or restores an exam.
func (r *ScheduledExamRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE scheduled_exams SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition moves an exam to `to` only if it is currently in one of from.
func (r *ScheduledExamRepository) Transition(ctx context.Context, id uuid.UUID, from []model.ExamStatus, to model.ExamStatus) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE scheduled_exams SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`,
		to, id, states)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// ReplacePaper swaps the frozen question list and refreshes the exam totals.
func (r *ScheduledExamRepository) ReplacePaper(ctx context.Context, examID uuid.UUID, paper []model.ExamQuestion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM exam_questions WHERE exam_id = $1`, examID); err != nil {
		return err
	}

	var totalMarks float64
	for _, q := range paper {
		totalMarks += q.Marks
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"exam_questions"},
		[]string{"exam_id", "question_id", "section_id", "section_name", "order_num", "marks", "negative_marks"},
		pgx.CopyFromSlice(len(paper), func(i int) ([]interface{}, error) {
			q := paper[i]
			return []interface{}{examID, q.QuestionID, q.SectionID, q.SectionName, q.OrderNum, q.Marks, q.NegativeMarks}, nil
		}),
	)
	if err != nil {
		return mapError(err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE scheduled_exams SET question_count = $1, total_marks = $2, updated_at = NOW() WHERE id = $3`,
		len(paper), totalMarks, examID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// PaperKeys returns the frozen paper joined with answer keys, in paper order.
func (r *ScheduledExamRepository) PaperKeys(ctx context.Context, examID uuid.UUID) ([]model.PaperKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT eq.question_id, eq.section_id, eq.section_name, eq.order_num, q.question_type, q.question_text,
		        q.options, q.correct_answer, q.explanation, q.tolerance, q.image_url, eq.marks, eq.negative_marks
		 FROM exam_questions eq
		 JOIN questions q ON q.id = eq.question_id
		 WHERE eq.exam_id = $1
		 ORDER BY eq.order_num`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []model.PaperKey{}
	for rows.Next() {
		var k model.PaperKey
		if err := rows.Scan(&k.QuestionID, &k.SectionID, &k.SectionName, &k.OrderNum, &k.QuestionType, &k.QuestionText,
			&k.Options, &k.CorrectAnswer, &k.Explanation, &k.Tolerance, &k.ImageURL, &k.Marks, &k.NegativeMarks); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// StartDue flips scheduled exams whose window has opened to live.
func (r *ScheduledExamRepository) StartDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.ids(ctx,
		`UPDATE scheduled_exams SET status = 'live', updated_at = NOW()
		 WHERE status = 'scheduled' AND is_active = TRUE AND start_at <= $1 AND end_at > $1
		 RETURNING id`, now)
}

// CompleteEnded closes scheduled or live exams whose window has passed.
func (r *ScheduledExamRepository) CompleteEnded(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.ids(ctx,
		`UPDATE scheduled_exams SET status = 'completed', updated_at = NOW()
		 WHERE status IN ('scheduled', 'live') AND end_at <= $1
		 RETURNING id`, now)
}

// ListIDsByStatus returns active exams in any of statuses.
func (r *ScheduledExamRepository) ListIDsByStatus(ctx context.Context, statuses ...model.ExamStatus) ([]uuid.UUID, error) {
	states := make([]string, len(statuses))
	for i, s := range statuses {
		states[i] = string(s)
	}
	return r.ids(ctx, `SELECT id FROM scheduled_exams WHERE is_active = TRUE AND status = ANY($1)`, states)
}

func (r *ScheduledExamRepository) ids(ctx context.Context, query string, args ...interface{}) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
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

// ListAvailable returns live exams for a student's class level and school,
// with the student's current attempt if any.
func (r *ScheduledExamRepository) ListAvailable(ctx context.Context, classLevelID, schoolID, userID int) ([]model.AvailableExam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`, a.id, a.status
		 FROM scheduled_exams e
		 LEFT JOIN exam_attempts a ON a.exam_id = e.id AND a.user_id = $3 AND a.is_active = TRUE
		 WHERE e.is_active = TRUE AND e.status = 'live' AND e.class_level_id = $1
		   AND (e.school_id IS NULL OR e.school_id = $2)
		 ORDER BY e.end_at`,
		classLevelID, schoolID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []model.AvailableExam{}
	for rows.Next() {
		var a model.AvailableExam
		e := &a.ScheduledExam
		if err := rows.Scan(&e.ID, &e.StructureID, &e.SchoolID, &e.Title, &e.ClassLevelID, &e.SubjectID, &e.StartAt, &e.EndAt,
			&e.DurationMinutes, &e.Status, &e.ShuffleQuestions, &e.ShowResults, &e.Instructions, &e.QuestionCount,
			&e.TotalMarks, &e.CreatedBy, &e.IsActive, &e.CreatedAt, &e.UpdatedAt, &a.AttemptID, &a.AttemptStatus); err != nil {
			return nil, err
		}
		exams = append(exams, a)
	}
	return exams, rows.Err()
}
