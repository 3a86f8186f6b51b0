package service

import (
	"context"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

// ClassLevelStore is the persistence ClassLevelService needs.
type ClassLevelStore interface {
	List(ctx context.Context, q model.ListQuery) ([]model.ClassLevel, int, error)
	GetByID(ctx context.Context, id int) (*model.ClassLevel, error)
	Create(ctx context.Context, l *model.ClassLevel) error
	Update(ctx context.Context, l *model.ClassLevel) error
	SetActive(ctx context.Context, id int, active bool) error
	ExistsActive(ctx context.Context, id int) (bool, error)
}

// ClassLevelService handles class level business logic.
type ClassLevelService struct {
	levelRepo ClassLevelStore
}

// NewClassLevelService creates a new ClassLevelService.
func NewClassLevelService(levelRepo ClassLevelStore) *ClassLevelService {
	return &ClassLevelService{levelRepo: levelRepo}
}

// List retrieves class levels ordered by level_order.
func (s *ClassLevelService) List(ctx context.Context, q model.ListQuery) ([]model.ClassLevel, *response.Pagination, error) {
	normalizeQuery(&q)
	levels, total, err := s.levelRepo.List(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return levels, response.NewPagination(q.Page, q.PerPage, total), nil
}

// GetByID retrieves a class level by its ID.
func (s *ClassLevelService) GetByID(ctx context.Context, id int) (*model.ClassLevel, error) {
	return s.levelRepo.GetByID(ctx, id)
}

// Create creates a new class level.
func (s *ClassLevelService) Create(ctx context.Context, req model.ClassLevelRequest) (*model.ClassLevel, error) {
	level := &model.ClassLevel{Name: req.Name, LevelOrder: req.LevelOrder, Description: req.Description, IsActive: true}
	if err := s.levelRepo.Create(ctx, level); err != nil {
		return nil, err
	}
	return level, nil
}

// Update modifies an existing class level.
func (s *ClassLevelService) Update(ctx context.Context, id int, req model.ClassLevelRequest) (*model.ClassLevel, error) {
	level := &model.ClassLevel{ID: id, Name: req.Name, LevelOrder: req.LevelOrder, Description: req.Description}
	if err := s.levelRepo.Update(ctx, level); err != nil {
		return nil, err
	}
	return s.levelRepo.GetByID(ctx, id)
}

// Delete soft-deletes a class level. Its subjects are left untouched.
func (s *ClassLevelService) Delete(ctx context.Context, id int) error {
	return s.levelRepo.SetActive(ctx, id, false)
}

// Restore reactivates a soft-deleted class level.
func (s *ClassLevelService) Restore(ctx context.Context, id int) error {
	return s.levelRepo.SetActive(ctx, id, true)
}
