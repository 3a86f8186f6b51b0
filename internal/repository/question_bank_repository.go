package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stemsi/exstem-admin/internal/model"
)

// QuestionBankRepository handles question bank data access.
type QuestionBankRepository struct {
	gormStore[model.QuestionBank]
}

// NewQuestionBankRepository creates a new QuestionBankRepository.
func NewQuestionBankRepository(db *gorm.DB) *QuestionBankRepository {
	return &QuestionBankRepository{gormStore[model.QuestionBank]{db: db}}
}

// List returns one page of question banks ordered by name.
func (r *QuestionBankRepository) List(ctx context.Context, f model.QuestionBankFilter) ([]model.QuestionBank, int, error) {
	tx := r.db.WithContext(ctx).Model(&model.QuestionBank{}).
		Scopes(statusScope("question_banks", f.Status), searchScope(f.Search, "question_banks.name"))
	if f.SubjectID > 0 {
		tx = tx.Where("question_banks.subject_id = ?", f.SubjectID)
	}
	if f.AuthorID > 0 {
		tx = tx.Where("question_banks.author_id = ?", f.AuthorID)
	}
	return r.page(tx, f.ListQuery, "question_banks.name ASC, question_banks.created_at ASC", "Subject")
}

func (r *QuestionBankRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	return r.get(ctx, id, "Subject")
}

func (r *QuestionBankRepository) Create(ctx context.Context, b *model.QuestionBank) error {
	return r.create(ctx, b)
}

func (r *QuestionBankRepository) Update(ctx context.Context, b *model.QuestionBank) error {
	return r.update(ctx, b, "subject_id", "name", "description", "updated_at")
}

func (r *QuestionBankRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.setActive(ctx, id, active)
}

func (r *QuestionBankRepository) ExistsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.existsActive(ctx, id)
}
