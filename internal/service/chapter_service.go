package service

import (
	"context"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/response"
)

// ChapterStore is the persistence ChapterService needs.
type ChapterStore interface {
	List(ctx context.Context, f model.ChapterFilter) ([]model.Chapter, int, error)
	GetByID(ctx context.Context, id int) (*model.Chapter, error)
	Create(ctx context.Context, c *model.Chapter) error
	Update(ctx context.Context, c *model.Chapter) error
	SetActive(ctx context.Context, id int, active bool) error
	ExistsActive(ctx context.Context, id int) (bool, error)
	CountInSubject(ctx context.Context, subjectID int, ids []int) (int, error)
}

// ChapterService handles chapter business logic.
type ChapterService struct {
	chapterRepo ChapterStore
	subjectRepo activeChecker
}

// NewChapterService creates a new ChapterService.
func NewChapterService(chapterRepo ChapterStore, subjectRepo activeChecker) *ChapterService {
	return &ChapterService{chapterRepo: chapterRepo, subjectRepo: subjectRepo}
}

// List retrieves chapters ordered by subject and chapter_order.
func (s *ChapterService) List(ctx context.Context, f model.ChapterFilter) ([]model.Chapter, *response.Pagination, error) {
	normalizeQuery(&f.ListQuery)
	chapters, total, err := s.chapterRepo.List(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return chapters, response.NewPagination(f.Page, f.PerPage, total), nil
}

// GetByID retrieves a chapter by its ID.
func (s *ChapterService) GetByID(ctx context.Context, id int) (*model.Chapter, error) {
	return s.chapterRepo.GetByID(ctx, id)
}

// Create adds a chapter under an active subject.
func (s *ChapterService) Create(ctx context.Context, req model.ChapterRequest) (*model.Chapter, error) {
	if err := requireActive(ctx, s.subjectRepo, req.SubjectID); err != nil {
		return nil, err
	}
	ch := &model.Chapter{
		SubjectID:    req.SubjectID,
		Name:         req.Name,
		ChapterOrder: req.ChapterOrder,
		Description:  req.Description,
		IsActive:     true,
	}
	if err := s.chapterRepo.Create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Update modifies a chapter. Moving it requires an active target subject.
func (s *ChapterService) Update(ctx context.Context, id int, req model.ChapterRequest) (*model.Chapter, error) {
	current, err := s.chapterRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.SubjectID != req.SubjectID {
		if err := requireActive(ctx, s.subjectRepo, req.SubjectID); err != nil {
			return nil, err
		}
	}
	ch := &model.Chapter{ID: id, SubjectID: req.SubjectID, Name: req.Name, ChapterOrder: req.ChapterOrder, Description: req.Description}
	if err := s.chapterRepo.Update(ctx, ch); err != nil {
		return nil, err
	}
	return s.chapterRepo.GetByID(ctx, id)
}

// Delete soft-deletes a chapter.
func (s *ChapterService) Delete(ctx context.Context, id int) error {
	return s.chapterRepo.SetActive(ctx, id, false)
}

// Restore reactivates a soft-deleted chapter.
func (s *ChapterService) Restore(ctx context.Context, id int) error {
	return s.chapterRepo.SetActive(ctx, id, true)
}

// CheckInSubject returns ErrInvalidParent unless every id is a chapter of
// subjectID.
func (s *ChapterService) CheckInSubject(ctx context.Context, subjectID int, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	uniq := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}
	n, err := s.chapterRepo.CountInSubject(ctx, subjectID, ids)
	if err != nil {
		return err
	}
	if n != len(uniq) {
		return ErrInvalidParent
	}
	return nil
}
