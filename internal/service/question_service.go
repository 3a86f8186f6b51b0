package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
	"github.com/stemsi/exstem-admin/internal/scoring"
)

// QuestionStore is the persistence QuestionService needs.
type QuestionStore interface {
	List(ctx context.Context, f model.QuestionFilter, qbankID *uuid.UUID) ([]model.Question, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	Create(ctx context.Context, q *model.Question) error
	Update(ctx context.Context, q *model.Question) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	BulkCreate(ctx context.Context, qs []model.Question) (int64, error)
	AssignToBank(ctx context.Context, ids []uuid.UUID, qbankID *uuid.UUID) (int64, error)
}

type chapterCounter interface {
	CountInSubject(ctx context.Context, subjectID int, ids []int) (int, error)
}

type bankGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.QuestionBank, error)
}

// QuestionService handles question business logic.
type QuestionService struct {
	questionRepo QuestionStore
	subjectRepo  activeChecker
	chapterRepo  chapterCounter
	bankRepo     bankGetter
	log          zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(
	questionRepo QuestionStore,
	subjectRepo activeChecker,
	chapterRepo chapterCounter,
	bankRepo bankGetter,
	log zerolog.Logger,
) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		subjectRepo:  subjectRepo,
		chapterRepo:  chapterRepo,
		bankRepo:     bankRepo,
		log:          log.With().Str("component", "question_service").Logger(),
	}
}

// List retrieves a filtered page of questions.
func (s *QuestionService) List(ctx context.Context, f model.QuestionFilter) ([]model.Question, *response.Pagination, error) {
	normalizeQuery(&f.ListQuery)

	var qbankID *uuid.UUID
	if v := strings.TrimSpace(f.QBankID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: qbank_id", ErrInvalidFilter)
		}
		qbankID = &id
	}

	questions, total, err := s.questionRepo.List(ctx, f, qbankID)
	if err != nil {
		return nil, nil, err
	}
	return questions, response.NewPagination(f.Page, f.PerPage, total), nil
}

// GetByID retrieves a question, including its answer key.
func (s *QuestionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	return s.questionRepo.GetByID(ctx, id)
}

// Create validates and stores a manual question.
func (s *QuestionService) Create(ctx context.Context, req model.QuestionRequest, createdBy int) (*model.Question, error) {
	q := req.ToQuestion()
	q.CreatedBy = &createdBy
	if err := s.prepare(ctx, q, nil); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Update replaces a question's content. Source and status are kept.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req model.QuestionRequest) (*model.Question, error) {
	q := req.ToQuestion()
	q.ID = id
	if err := s.prepare(ctx, q, nil); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Update(ctx, q); err != nil {
		return nil, err
	}
	return s.questionRepo.GetByID(ctx, id)
}

// Delete soft-deletes a question. Generated papers keep referencing it.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.questionRepo.SetActive(ctx, id, false)
}

// Restore reactivates a soft-deleted question.
func (s *QuestionService) Restore(ctx context.Context, id uuid.UUID) error {
	return s.questionRepo.SetActive(ctx, id, true)
}

// BulkCreate validates every request and inserts them in one COPY.
func (s *QuestionService) BulkCreate(ctx context.Context, reqs []model.QuestionRequest, createdBy int) (int64, error) {
	qs := make([]model.Question, len(reqs))
	for i, r := range reqs {
		q := r.ToQuestion()
		q.CreatedBy = &createdBy
		qs[i] = *q
	}
	return s.Import(ctx, qs)
}

// Import validates already-built questions and inserts them in one COPY.
// Nothing is written if any question is invalid.
func (s *QuestionService) Import(ctx context.Context, qs []model.Question) (int64, error) {
	if err := s.ValidateImport(ctx, qs); err != nil {
		return 0, err
	}
	n, err := s.questionRepo.BulkCreate(ctx, qs)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("count", n).Msg("Questions bulk inserted")
	return n, nil
}

// ValidateImport checks every question of a batch and normalizes it in place.
func (s *QuestionService) ValidateImport(ctx context.Context, qs []model.Question) error {
	if len(qs) == 0 {
		return ErrNothingToImport
	}
	checked := make(map[placement]error)
	for i := range qs {
		if err := s.prepare(ctx, &qs[i], checked); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// AssignToBank moves questions into a bank, or out of any bank when qbankID
// is nil. Only questions of the bank's subject move; the rest are reported as
// skipped.
func (s *QuestionService) AssignToBank(ctx context.Context, ids []uuid.UUID, qbankID *uuid.UUID) (*model.AssignQuestionsResult, error) {
	if qbankID != nil {
		bank, err := s.bankRepo.GetByID(ctx, *qbankID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrInvalidParent
			}
			return nil, err
		}
		if !bank.IsActive {
			return nil, ErrInvalidParent
		}
	}

	uniq := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}

	n, err := s.questionRepo.AssignToBank(ctx, uniq, qbankID)
	if err != nil {
		return nil, err
	}
	res := &model.AssignQuestionsResult{Updated: n, Skipped: int64(len(uniq)) - n}
	if res.Skipped > 0 {
		s.log.Info().Int64("updated", res.Updated).Int64("skipped", res.Skipped).Msg("Some questions were not moved to the bank")
	}
	return res, nil
}

// placement is the parent tuple of a question.
type placement struct {
	subjectID int
	chapterID int
	qbankID   uuid.UUID
}

// prepare checks the answer key and that subject, chapter and bank are
// active and consistent. checked caches placement results across a batch.
func (s *QuestionService) prepare(ctx context.Context, q *model.Question, checked map[placement]error) error {
	if err := scoring.ValidateQuestion(q.QuestionType, q.Options, q.CorrectAnswer, q.Tolerance); err != nil {
		return err
	}
	if q.QuestionType != model.QuestionNumeric {
		q.Tolerance = nil
	}
	if !q.QuestionType.IsChoice() {
		q.Options = []model.Option{}
	}

	p := placement{subjectID: q.SubjectID}
	if q.ChapterID != nil {
		p.chapterID = *q.ChapterID
	}
	if q.QBankID != nil {
		p.qbankID = *q.QBankID
	}
	if checked != nil {
		if err, ok := checked[p]; ok {
			return err
		}
	}
	err := s.checkPlacement(ctx, p)
	if checked != nil {
		checked[p] = err
	}
	return err
}

func (s *QuestionService) checkPlacement(ctx context.Context, p placement) error {
	if err := requireActive(ctx, s.subjectRepo, p.subjectID); err != nil {
		return err
	}
	if p.chapterID != 0 {
		n, err := s.chapterRepo.CountInSubject(ctx, p.subjectID, []int{p.chapterID})
		if err != nil {
			return err
		}
		if n != 1 {
			return ErrInvalidParent
		}
	}
	if p.qbankID != uuid.Nil {
		bank, err := s.bankRepo.GetByID(ctx, p.qbankID)
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidParent
		}
		if err != nil {
			return err
		}
		if !bank.IsActive || bank.SubjectID != p.subjectID {
			return ErrInvalidParent
		}
	}
	return nil
}
