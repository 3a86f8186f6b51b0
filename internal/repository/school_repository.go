package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/stemsi/exstem-admin/internal/model"
)

// SchoolRepository handles school data access.
type SchoolRepository struct {
	gormStore[model.School]
}

// NewSchoolRepository creates a new SchoolRepository.
func NewSchoolRepository(db *gorm.DB) *SchoolRepository {
	return &SchoolRepository{gormStore[model.School]{db: db}}
}

// List returns one page of schools ordered by name.
func (r *SchoolRepository) List(ctx context.Context, q model.ListQuery) ([]model.School, int, error) {
	tx := r.db.WithContext(ctx).Model(&model.School{}).
		Scopes(statusScope("schools", q.Status), searchScope(q.Search, "schools.name", "schools.code"))
	return r.page(tx, q, "schools.name ASC, schools.id ASC")
}

func (r *SchoolRepository) GetByID(ctx context.Context, id int) (*model.School, error) {
	return r.get(ctx, id)
}

func (r *SchoolRepository) Create(ctx context.Context, s *model.School) error {
	return r.create(ctx, s)
}

func (r *SchoolRepository) Update(ctx context.Context, s *model.School) error {
	return r.update(ctx, s, "name", "code", "address", "phone", "email", "updated_at")
}

// SetActive soft-deletes or restores a school.
func (r *SchoolRepository) SetActive(ctx context.Context, id int, active bool) error {
	return r.setActive(ctx, id, active)
}

func (r *SchoolRepository) ExistsActive(ctx context.Context, id int) (bool, error) {
	return r.existsActive(ctx, id)
}
