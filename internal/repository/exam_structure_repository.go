package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/stemsi/exstem-admin/internal/model"
)

// ExamStructureRepository handles exam blueprints and their sections.
type ExamStructureRepository struct {
	gormStore[model.ExamStructure]
}

// NewExamStructureRepository creates a new ExamStructureRepository.
func NewExamStructureRepository(db *gorm.DB) *ExamStructureRepository {
	return &ExamStructureRepository{gormStore[model.ExamStructure]{db: db}}
}

// List returns one page of structures with their sections.
func (r *ExamStructureRepository) List(ctx context.Context, f model.ExamStructureFilter) ([]model.ExamStructure, int, error) {
	tx := r.db.WithContext(ctx).Model(&model.ExamStructure{}).
		Scopes(statusScope("exam_structures", f.Status), searchScope(f.Search, "exam_structures.name"))
	if f.ClassLevelID > 0 {
		tx = tx.Where("exam_structures.class_level_id = ?", f.ClassLevelID)
	}
	if f.SubjectID > 0 {
		tx = tx.Where("exam_structures.subject_id = ?", f.SubjectID)
	}

	items, total, err := r.page(tx, f.ListQuery, "exam_structures.name ASC, exam_structures.id ASC", "Sections")
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		finish(&items[i])
	}
	return items, total, nil
}

func (r *ExamStructureRepository) GetByID(ctx context.Context, id int) (*model.ExamStructure, error) {
	s, err := r.get(ctx, id, "Sections")
	if err != nil {
		return nil, err
	}
	finish(s)
	return s, nil
}

// Create inserts the structure and its sections atomically.
func (r *ExamStructureRepository) Create(ctx context.Context, s *model.ExamStructure) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(s).Error
	})
	if err != nil {
		return mapError(err)
	}
	finish(s)
	return nil
}

// Update rewrites the structure's fields and replaces all of its sections.
func (r *ExamStructureRepository) Update(ctx context.Context, s *model.ExamStructure) error {
	sections := s.Sections
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(s).Omit("Sections").
			Select("name", "class_level_id", "subject_id", "description", "instructions", "duration_minutes", "updated_at").
			Updates(s)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where("structure_id = ?", s.ID).Delete(&model.ExamStructureSection{}).Error; err != nil {
			return err
		}
		for i := range sections {
			sections[i].ID = 0
			sections[i].StructureID = s.ID
		}
		if len(sections) == 0 {
			return nil
		}
		return tx.Create(&sections).Error
	})
	if err != nil {
		return mapError(err)
	}
	s.Sections = sections
	finish(s)
	return nil
}

func (r *ExamStructureRepository) SetActive(ctx context.Context, id int, active bool) error {
	return r.setActive(ctx, id, active)
}

func finish(s *model.ExamStructure) {
	sort.SliceStable(s.Sections, func(i, j int) bool {
		return s.Sections[i].SectionOrder < s.Sections[j].SectionOrder
	})
	s.ComputeTotals()
}
