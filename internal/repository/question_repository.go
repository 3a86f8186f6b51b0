package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-admin/internal/model"
)

const questionColumns = `id, subject_id, chapter_id, qbank_id, question_type, question_text, options, correct_answer,
	explanation, difficulty, marks, tolerance, image_url, source, is_active, created_by, created_at, updated_at`

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func scanQuestion(row pgx.Row, q *model.Question) error {
	return row.Scan(&q.ID, &q.SubjectID, &q.ChapterID, &q.QBankID, &q.QuestionType, &q.QuestionText, &q.Options,
		&q.CorrectAnswer, &q.Explanation, &q.Difficulty, &q.Marks, &q.Tolerance, &q.ImageURL, &q.Source,
		&q.IsActive, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
}

// List returns one page of questions, newest first.
func (r *QuestionRepository) List(ctx context.Context, f model.QuestionFilter, qbankID *uuid.UUID) ([]model.Question, int, error) {
	w := &where{}
	w.status("is_active", f.Status)
	if f.SubjectID > 0 {
		w.add("subject_id = " + w.arg(f.SubjectID))
	}
	if f.ChapterID > 0 {
		w.add("chapter_id = " + w.arg(f.ChapterID))
	}
	if qbankID != nil {
		w.add("qbank_id = " + w.arg(*qbankID))
	}
	if f.QuestionType != "" {
		w.add("question_type = " + w.arg(f.QuestionType))
	}
	if f.Difficulty != "" {
		w.add("difficulty = " + w.arg(f.Difficulty))
	}
	if f.Source != "" {
		w.add("source = " + w.arg(f.Source))
	}
	w.search(f.Search, "question_text", "explanation")

	// 1. Get total count
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// 2. Get paginated data
	query := `SELECT ` + questionColumns + ` FROM questions` + w.sql() + ` ORDER BY created_at DESC, id`
	query += w.limit(f.ListQuery)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, 0, err
		}
		questions = append(questions, q)
	}
	return questions, total, rows.Err()
}

// GetByID retrieves a question regardless of its active flag.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id), q)
	if err != nil {
		return nil, mapError(err)
	}
	return q, nil
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO questions (subject_id, chapter_id, qbank_id, question_type, question_text, options, correct_answer,
		                        explanation, difficulty, marks, tolerance, image_url, source, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id, is_active, created_at, updated_at`,
		q.SubjectID, q.ChapterID, q.QBankID, q.QuestionType, q.QuestionText, q.Options, q.CorrectAnswer,
		q.Explanation, q.Difficulty, q.Marks, q.Tolerance, q.ImageURL, q.Source, q.CreatedBy,
	).Scan(&q.ID, &q.IsActive, &q.CreatedAt, &q.UpdatedAt)
	return mapError(err)
}

// Update rewrites a question's content.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE questions
		 SET subject_id = $1, chapter_id = $2, qbank_id = $3, question_type = $4, question_text = $5, options = $6,
		     correct_answer = $7, explanation = $8, difficulty = $9, marks = $10, tolerance = $11, image_url = $12,
		     updated_at = NOW()
		 WHERE id = $13
		 RETURNING is_active, source, created_at, updated_at`,
		q.SubjectID, q.ChapterID, q.QBankID, q.QuestionType, q.QuestionText, q.Options, q.CorrectAnswer,
		q.Explanation, q.Difficulty, q.Marks, q.Tolerance, q.ImageURL, q.ID,
	).Scan(&q.IsActive, &q.Source, &q.CreatedAt, &q.UpdatedAt)
	return mapError(err)
}

// SetActive soft-deletes or restores a question.
func (r *QuestionRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE questions SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkCreate inserts many questions with COPY. IDs are assigned here since
// COPY cannot return generated values.
func (r *QuestionRepository) BulkCreate(ctx context.Context, qs []model.Question) (int64, error) {
	n, err := copyQuestions(ctx, r.pool, qs)
	return n, mapError(err)
}

// copier is satisfied by both the pool and a transaction.
type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

func copyQuestions(ctx context.Context, db copier, qs []model.Question) (int64, error) {
	if len(qs) == 0 {
		return 0, nil
	}
	for i := range qs {
		if qs[i].ID == uuid.Nil {
			qs[i].ID = uuid.New()
		}
	}

	return db.CopyFrom(
		ctx,
		pgx.Identifier{"questions"},
		[]string{"id", "subject_id", "chapter_id", "qbank_id", "question_type", "question_text", "options",
			"correct_answer", "explanation", "difficulty", "marks", "tolerance", "image_url", "source", "created_by"},
		pgx.CopyFromSlice(len(qs), func(i int) ([]interface{}, error) {
			q := qs[i]
			return []interface{}{q.ID, q.SubjectID, q.ChapterID, q.QBankID, string(q.QuestionType), q.QuestionText,
				q.Options, q.CorrectAnswer, q.Explanation, q.Difficulty, q.Marks, q.Tolerance, q.ImageURL, q.Source,
				q.CreatedBy}, nil
		}),
	)
}

// AssignToBank moves questions into qbankID, or out of any bank when nil.
// Questions of another subject than the bank are left untouched.
func (r *QuestionRepository) AssignToBank(ctx context.Context, ids []uuid.UUID, qbankID *uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE questions SET qbank_id = $1, updated_at = NOW()
		 WHERE id = ANY($2)
		   AND ($1::uuid IS NULL OR subject_id = (SELECT subject_id FROM question_banks WHERE id = $1))`,
		qbankID, ids)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func criteriaWhere(c model.SectionCriteria) *where {
	w := &where{}
	w.add("is_active = TRUE")
	if c.SubjectID != nil {
		w.add("subject_id = " + w.arg(*c.SubjectID))
	} else {
		w.add("subject_id IN (SELECT id FROM subjects WHERE class_level_id = " + w.arg(c.ClassLevelID) + " AND is_active = TRUE)")
	}
	if c.QuestionType != nil {
		w.add("question_type = " + w.arg(string(*c.QuestionType)))
	}
	if len(c.ChapterIDs) > 0 {
		w.add("chapter_id = ANY(" + w.arg(c.ChapterIDs) + ")")
	}
	if c.Difficulty != nil {
		w.add("difficulty = " + w.arg(*c.Difficulty))
	}
	return w
}

// CountMatching counts active questions that satisfy a section.
func (r *QuestionRepository) CountMatching(ctx context.Context, c model.SectionCriteria) (int, error) {
	w := criteriaWhere(c)
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+w.sql(), w.args...).Scan(&n)
	return n, err
}

// PickRandom draws up to n matching questions, skipping exclude.
func (r *QuestionRepository) PickRandom(ctx context.Context, c model.SectionCriteria, n int, exclude []uuid.UUID) ([]uuid.UUID, error) {
	w := criteriaWhere(c)
	if len(exclude) > 0 {
		w.add("NOT (id = ANY(" + w.arg(exclude) + "))")
	}
	query := `SELECT id FROM questions` + w.sql() + ` ORDER BY random() LIMIT ` + w.arg(n)
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, n)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
