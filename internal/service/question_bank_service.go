package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

type QuestionBankStore interface {
	List(ctx context.Context, f model.QuestionBankFilter) ([]model.QuestionBank, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error)
	Create(ctx context.Context, b *model.QuestionBank) error
	Update(ctx context.Context, b *model.QuestionBank) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// QuestionBankService handles question bank business logic.
type QuestionBankService struct {
	bankRepo    QuestionBankStore
	subjectRepo activeChecker
}

// NewQuestionBankService creates a new QuestionBankService.
func NewQuestionBankService(bankRepo QuestionBankStore, subjectRepo activeChecker) *QuestionBankService {
	return &QuestionBankService{bankRepo: bankRepo, subjectRepo: subjectRepo}
}

func (s *QuestionBankService) List(ctx context.Context, f model.QuestionBankFilter) ([]model.QuestionBank, *response.Pagination, error) {
	normalizeQuery(&f.ListQuery)
	banks, total, err := s.bankRepo.List(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return banks, response.NewPagination(f.Page, f.PerPage, total), nil
}

func (s *QuestionBankService) GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error) {
	return s.bankRepo.GetByID(ctx, id)
}

// Create adds a bank owned by authorID under an active subject.
func (s *QuestionBankService) Create(ctx context.Context, req model.QuestionBankRequest, authorID int) (*model.QuestionBank, error) {
	if err := requireActive(ctx, s.subjectRepo, req.SubjectID); err != nil {
		return nil, err
	}
	bank := &model.QuestionBank{
		SubjectID:   req.SubjectID,
		AuthorID:    &authorID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}
	if err := s.bankRepo.Create(ctx, bank); err != nil {
		return nil, err
	}
	return bank, nil
}

func (s *QuestionBankService) Update(ctx context.Context, id uuid.UUID, req model.QuestionBankRequest) (*model.QuestionBank, error) {
	current, err := s.bankRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.SubjectID != req.SubjectID {
		if err := requireActive(ctx, s.subjectRepo, req.SubjectID); err != nil {
			return nil, err
		}
	}
	bank := &model.QuestionBank{ID: id, SubjectID: req.SubjectID, Name: req.Name, Description: req.Description}
	if err := s.bankRepo.Update(ctx, bank); err != nil {
		return nil, err
	}
	return s.bankRepo.GetByID(ctx, id)
}

// Delete soft-deletes a bank. Its questions stay assigned to it.
func (s *QuestionBankService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.bankRepo.SetActive(ctx, id, false)
}

func (s *QuestionBankService) Restore(ctx context.Context, id uuid.UUID) error {
	return s.bankRepo.SetActive(ctx, id, true)
}
