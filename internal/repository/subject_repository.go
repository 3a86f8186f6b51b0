package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/stemsi/exstem-admin/internal/model"
)

// SubjectRepository handles subject data access.
type SubjectRepository struct {
	gormStore[model.Subject]
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{gormStore[model.Subject]{db: db}}
}

// List returns one page of subjects, optionally within a class level.
func (r *SubjectRepository) List(ctx context.Context, f model.SubjectFilter) ([]model.Subject, int, error) {
	tx := r.db.WithContext(ctx).Model(&model.Subject{}).
		Scopes(statusScope("subjects", f.Status), searchScope(f.Search, "subjects.name", "subjects.code"))
	if f.ClassLevelID > 0 {
		tx = tx.Where("subjects.class_level_id = ?", f.ClassLevelID)
	}
	return r.page(tx, f.ListQuery, "subjects.name ASC, subjects.id ASC", "ClassLevel")
}

func (r *SubjectRepository) GetByID(ctx context.Context, id int) (*model.Subject, error) {
	return r.get(ctx, id, "ClassLevel")
}

func (r *SubjectRepository) Create(ctx context.Context, s *model.Subject) error {
	return r.create(ctx, s)
}

func (r *SubjectRepository) Update(ctx context.Context, s *model.Subject) error {
	return r.update(ctx, s, "class_level_id", "name", "code", "description", "updated_at")
}

func (r *SubjectRepository) SetActive(ctx context.Context, id int, active bool) error {
	return r.setActive(ctx, id, active)
}

func (r *SubjectRepository) ExistsActive(ctx context.Context, id int) (bool, error) {
	return r.existsActive(ctx, id)
}
