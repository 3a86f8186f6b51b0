package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type SubjectStore interface {
	List(ctx context.Context, f model.SubjectFilter) ([]model.Subject, int, error)
	GetByID(ctx context.Context, id int) (*model.Subject, error)
	Create(ctx context.Context, s *model.Subject) error
	Update(ctx context.Context, s *model.Subject) error
	SetActive(ctx context.Context, id int, active bool) error
	ExistsActive(ctx context.Context, id int) (bool, error)
}

// activeChecker is satisfied by every catalog store.
type activeChecker interface {
	ExistsActive(ctx context.Context, id int) (bool, error)
}

// requireActive returns ErrInvalidParent unless id names an active row.
func requireActive(ctx context.Context, store activeChecker, id int) error {
	ok, err := store.ExistsActive(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidParent
	}
	return nil
}

type SubjectService struct {
	subjectRepo SubjectStore
	levelRepo   activeChecker
	log         zerolog.Logger
}

func NewSubjectService(subjectRepo SubjectStore, levelRepo activeChecker, log zerolog.Logger) *SubjectService {
	return &SubjectService{
		subjectRepo: subjectRepo,
		levelRepo:   levelRepo,
		log:         log.With().Str("component", "subject_service").Logger(),
	}
}

func (s *SubjectService) List(ctx context.Context, f model.SubjectFilter) ([]model.Subject, *response.Pagination, error) {
	normalizeQuery(&f.ListQuery)
	subjects, total, err := s.subjectRepo.List(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return subjects, response.NewPagination(f.Page, f.PerPage, total), nil
}

func (s *SubjectService) GetByID(ctx context.Context, id int) (*model.Subject, error) {
	return s.subjectRepo.GetByID(ctx, id)
}

// Create adds a subject under an active class level.
func (s *SubjectService) Create(ctx context.Context, req model.SubjectRequest) (*model.Subject, error) {
	if err := requireActive(ctx, s.levelRepo, req.ClassLevelID); err != nil {
		return nil, err
	}
	sub := &model.Subject{
		ClassLevelID: req.ClassLevelID,
		Name:         req.Name,
		Code:         req.Code,
		Description:  req.Description,
		IsActive:     true,
	}
	if err := s.subjectRepo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Update may move a subject, but only to an active class level.
func (s *SubjectService) Update(ctx context.Context, id int, req model.SubjectRequest) (*model.Subject, error) {
	current, err := s.subjectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.ClassLevelID != req.ClassLevelID {
		if err := requireActive(ctx, s.levelRepo, req.ClassLevelID); err != nil {
			return nil, err
		}
	}
	sub := &model.Subject{ID: id, ClassLevelID: req.ClassLevelID, Name: req.Name, Code: req.Code, Description: req.Description}
	if err := s.subjectRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return s.subjectRepo.GetByID(ctx, id)
}

func (s *SubjectService) Delete(ctx context.Context, id int) error {
	return s.subjectRepo.SetActive(ctx, id, false)
}

func (s *SubjectService) Restore(ctx context.Context, id int) error {
	return s.subjectRepo.SetActive(ctx, id, true)
}
