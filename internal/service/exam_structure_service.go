package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

// ExamStructureStore is the persistence ExamStructureService needs.
type ExamStructureStore interface {
	List(ctx context.Context, f model.ExamStructureFilter) ([]model.ExamStructure, int, error)
	GetByID(ctx context.Context, id int) (*model.ExamStructure, error)
	Create(ctx context.Context, s *model.ExamStructure) error
	Update(ctx context.Context, s *model.ExamStructure) error
	SetActive(ctx context.Context, id int, active bool) error
}

type subjectGetter interface {
	GetByID(ctx context.Context, id int) (*model.Subject, error)
}

type questionMatcher interface {
	CountMatching(ctx context.Context, c model.SectionCriteria) (int, error)
}

// ExamStructureService manages exam blueprints.
type ExamStructureService struct {
	structureRepo ExamStructureStore
	levelRepo     activeChecker
	subjectRepo   subjectGetter
	chapterRepo   chapterCounter
	questionRepo  questionMatcher
	log           zerolog.Logger
}

// NewExamStructureService creates a new ExamStructureService.
func NewExamStructureService(
	structureRepo ExamStructureStore,
	levelRepo activeChecker,
	subjectRepo subjectGetter,
	chapterRepo chapterCounter,
	questionRepo questionMatcher,
	log zerolog.Logger,
) *ExamStructureService {
	return &ExamStructureService{
		structureRepo: structureRepo,
		levelRepo:     levelRepo,
		subjectRepo:   subjectRepo,
		chapterRepo:   chapterRepo,
		questionRepo:  questionRepo,
		log:           log.With().Str("component", "exam_structure_service").Logger(),
	}
}

func (s *ExamStructureService) List(ctx context.Context, f model.ExamStructureFilter) ([]model.ExamStructure, *response.Pagination, error) {
	normalizeQuery(&f.ListQuery)
	items, total, err := s.structureRepo.List(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return items, response.NewPagination(f.Page, f.PerPage, total), nil
}

func (s *ExamStructureService) GetByID(ctx context.Context, id int) (*model.ExamStructure, error) {
	return s.structureRepo.GetByID(ctx, id)
}

// Create validates and stores a structure with its sections.
func (s *ExamStructureService) Create(ctx context.Context, req model.ExamStructureRequest) (*model.ExamStructure, error) {
	st, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	st.IsActive = true
	if err := s.structureRepo.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Update replaces the structure and all of its sections. Papers generated
// earlier are frozen and not affected.
func (s *ExamStructureService) Update(ctx context.Context, id int, req model.ExamStructureRequest) (*model.ExamStructure, error) {
	st, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	st.ID = id
	if err := s.structureRepo.Update(ctx, st); err != nil {
		return nil, err
	}
	return s.structureRepo.GetByID(ctx, id)
}

func (s *ExamStructureService) Delete(ctx context.Context, id int) error {
	return s.structureRepo.SetActive(ctx, id, false)
}

func (s *ExamStructureService) Restore(ctx context.Context, id int) error {
	return s.structureRepo.SetActive(ctx, id, true)
}

// Preview reports, per section, how many active questions match it.
func (s *ExamStructureService) Preview(ctx context.Context, id int) (*model.StructurePreview, error) {
	st, err := s.structureRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	preview := &model.StructurePreview{
		StructureID:    st.ID,
		TotalQuestions: st.TotalQuestions,
		TotalMarks:     st.TotalMarks,
		Ready:          true,
		Sections:       make([]model.SectionAvailability, 0, len(st.Sections)),
	}
	for _, sec := range st.Sections {
		n, err := s.questionRepo.CountMatching(ctx, st.Criteria(sec))
		if err != nil {
			return nil, fmt.Errorf("count section %d: %w", sec.ID, err)
		}
		a := model.SectionAvailability{
			SectionID:    sec.ID,
			Name:         sec.Name,
			Required:     sec.QuestionCount,
			Available:    n,
			Insufficient: n < sec.QuestionCount,
		}
		if a.Insufficient {
			preview.Ready = false
		}
		preview.Sections = append(preview.Sections, a)
	}
	return preview, nil
}

// build checks parents and section rules and converts the request.
func (s *ExamStructureService) build(ctx context.Context, req model.ExamStructureRequest) (*model.ExamStructure, error) {
	if err := requireActive(ctx, s.levelRepo, req.ClassLevelID); err != nil {
		return nil, err
	}
	if req.SubjectID != nil {
		sub, err := s.subjectRepo.GetByID(ctx, *req.SubjectID)
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidParent
		}
		if err != nil {
			return nil, err
		}
		if !sub.IsActive || sub.ClassLevelID != req.ClassLevelID {
			return nil, ErrInvalidParent
		}
	}

	sections, err := buildSections(req.Sections)
	if err != nil {
		return nil, err
	}
	for _, sec := range sections {
		if len(sec.ChapterIDs) == 0 {
			continue
		}
		if req.SubjectID == nil {
			return nil, fmt.Errorf("%w: chapter filters need a subject", ErrInvalidStructure)
		}
		n, err := s.chapterRepo.CountInSubject(ctx, *req.SubjectID, sec.ChapterIDs)
		if err != nil {
			return nil, err
		}
		if n != len(sec.ChapterIDs) {
			return nil, ErrInvalidParent
		}
	}

	return &model.ExamStructure{
		Name:            req.Name,
		ClassLevelID:    req.ClassLevelID,
		SubjectID:       req.SubjectID,
		Description:     req.Description,
		Instructions:    req.Instructions,
		DurationMinutes: req.DurationMinutes,
		Sections:        sections,
	}, nil
}

// buildSections numbers sections by position when no order is given and
// rejects duplicate orders otherwise.
func buildSections(reqs []model.ExamStructureSectionRequest) ([]model.ExamStructureSection, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: at least one section is required", ErrInvalidStructure)
	}

	explicit := false
	for _, r := range reqs {
		if r.SectionOrder != 0 {
			explicit = true
			break
		}
	}

	seen := make(map[int]bool, len(reqs))
	sections := make([]model.ExamStructureSection, len(reqs))
	for i, r := range reqs {
		if r.QuestionCount < 1 || r.MarksPerQuestion <= 0 || r.NegativeMarks < 0 {
			return nil, fmt.Errorf("%w: section %d has invalid counts or marks", ErrInvalidStructure, i)
		}
		order := r.SectionOrder
		if !explicit {
			order = i + 1
		}
		if seen[order] {
			return nil, fmt.Errorf("%w: duplicate section_order %d", ErrInvalidStructure, order)
		}
		seen[order] = true

		chapters := dedupeInts(r.ChapterIDs)
		sections[i] = model.ExamStructureSection{
			Name:             r.Name,
			QuestionType:     r.QuestionType,
			ChapterIDs:       model.IntList(chapters),
			Difficulty:       r.Difficulty,
			QuestionCount:    r.QuestionCount,
			MarksPerQuestion: r.MarksPerQuestion,
			NegativeMarks:    r.NegativeMarks,
			SectionOrder:     order,
		}
	}
	return sections, nil
}

func dedupeInts(in []int) []int {
	out := make([]int, 0, len(in))
	seen := make(map[int]bool, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
