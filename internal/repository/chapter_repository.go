package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/stemsi/exstem-admin/internal/model"
)

// ChapterRepository handles chapter data access.
type ChapterRepository struct {
	gormStore[model.Chapter]
}

// NewChapterRepository creates a new ChapterRepository.
func NewChapterRepository(db *gorm.DB) *ChapterRepository {
	return &ChapterRepository{gormStore[model.Chapter]{db: db}}
}

// List returns one page of chapters in chapter order.
func (r *ChapterRepository) List(ctx context.Context, f model.ChapterFilter) ([]model.Chapter, int, error) {
	tx := r.db.WithContext(ctx).Model(&model.Chapter{}).
		Scopes(statusScope("chapters", f.Status), searchScope(f.Search, "chapters.name"))
	if f.SubjectID > 0 {
		tx = tx.Where("chapters.subject_id = ?", f.SubjectID)
	}
	return r.page(tx, f.ListQuery, "chapters.subject_id ASC, chapters.chapter_order ASC, chapters.id ASC")
}

func (r *ChapterRepository) GetByID(ctx context.Context, id int) (*model.Chapter, error) {
	return r.get(ctx, id, "Subject")
}

func (r *ChapterRepository) Create(ctx context.Context, c *model.Chapter) error {
	return r.create(ctx, c)
}

func (r *ChapterRepository) Update(ctx context.Context, c *model.Chapter) error {
	return r.update(ctx, c, "subject_id", "name", "chapter_order", "description", "updated_at")
}

func (r *ChapterRepository) SetActive(ctx context.Context, id int, active bool) error {
	return r.setActive(ctx, id, active)
}

func (r *ChapterRepository) ExistsActive(ctx context.Context, id int) (bool, error) {
	return r.existsActive(ctx, id)
}

// CountInSubject counts how many of ids are chapters of subjectID.
func (r *ChapterRepository) CountInSubject(ctx context.Context, subjectID int, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Chapter{}).
		Where("subject_id = ? AND id IN ?", subjectID, ids).
		Count(&n).Error
	return int(n), mapError(err)
}
