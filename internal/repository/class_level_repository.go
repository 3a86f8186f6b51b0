package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/stemsi/exstem-admin/internal/model"
)

// ClassLevelRepository handles class level data access.
type ClassLevelRepository struct {
	gormStore[model.ClassLevel]
}

// NewClassLevelRepository creates a new ClassLevelRepository.
func NewClassLevelRepository(db *gorm.DB) *ClassLevelRepository {
	return &ClassLevelRepository{gormStore[model.ClassLevel]{db: db}}
}

// List returns one page of class levels in level order.
func (r *ClassLevelRepository) List(ctx context.Context, q model.ListQuery) ([]model.ClassLevel, int, error) {
	tx := r.db.WithContext(ctx).Model(&model.ClassLevel{}).
		Scopes(statusScope("class_levels", q.Status), searchScope(q.Search, "class_levels.name"))
	return r.page(tx, q, "class_levels.level_order ASC, class_levels.id ASC")
}

func (r *ClassLevelRepository) GetByID(ctx context.Context, id int) (*model.ClassLevel, error) {
	return r.get(ctx, id)
}

func (r *ClassLevelRepository) Create(ctx context.Context, l *model.ClassLevel) error {
	return r.create(ctx, l)
}

func (r *ClassLevelRepository) Update(ctx context.Context, l *model.ClassLevel) error {
	return r.update(ctx, l, "name", "level_order", "description", "updated_at")
}

func (r *ClassLevelRepository) SetActive(ctx context.Context, id int, active bool) error {
	return r.setActive(ctx, id, active)
}

func (r *ClassLevelRepository) ExistsActive(ctx context.Context, id int) (bool, error) {
	return r.existsActive(ctx, id)
}
