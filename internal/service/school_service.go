package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

// SchoolStore is the persistence SchoolService needs.
type SchoolStore interface {
	List(ctx context.Context, q model.ListQuery) ([]model.School, int, error)
	GetByID(ctx context.Context, id int) (*model.School, error)
	Create(ctx context.Context, s *model.School) error
	Update(ctx context.Context, s *model.School) error
	SetActive(ctx context.Context, id int, active bool) error
	ExistsActive(ctx context.Context, id int) (bool, error)
}

// SchoolService handles school business logic.
type SchoolService struct {
	schoolRepo SchoolStore
	log        zerolog.Logger
}

// NewSchoolService creates a new SchoolService.
func NewSchoolService(schoolRepo SchoolStore, log zerolog.Logger) *SchoolService {
	return &SchoolService{
		schoolRepo: schoolRepo,
		log:        log.With().Str("component", "school_service").Logger(),
	}
}

func (s *SchoolService) List(ctx context.Context, q model.ListQuery) ([]model.School, *response.Pagination, error) {
	normalizeQuery(&q)
	schools, total, err := s.schoolRepo.List(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return schools, response.NewPagination(q.Page, q.PerPage, total), nil
}

func (s *SchoolService) GetByID(ctx context.Context, id int) (*model.School, error) {
	return s.schoolRepo.GetByID(ctx, id)
}

func (s *SchoolService) Create(ctx context.Context, req model.SchoolRequest) (*model.School, error) {
	school := &model.School{
		Name:     req.Name,
		Code:     req.Code,
		Address:  req.Address,
		Phone:    req.Phone,
		Email:    req.Email,
		IsActive: true,
	}
	if err := s.schoolRepo.Create(ctx, school); err != nil {
		return nil, err
	}
	return school, nil
}

func (s *SchoolService) Update(ctx context.Context, id int, req model.SchoolRequest) (*model.School, error) {
	school := &model.School{ID: id, Name: req.Name, Code: req.Code, Address: req.Address, Phone: req.Phone, Email: req.Email}
	if err := s.schoolRepo.Update(ctx, school); err != nil {
		return nil, err
	}
	return s.schoolRepo.GetByID(ctx, id)
}

// Delete soft-deletes a school.
func (s *SchoolService) Delete(ctx context.Context, id int) error {
	return s.schoolRepo.SetActive(ctx, id, false)
}

func (s *SchoolService) Restore(ctx context.Context, id int) error {
	return s.schoolRepo.SetActive(ctx, id, true)
}
