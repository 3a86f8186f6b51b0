package model

import "time"

// ExamStructure is a reusable exam blueprint made of sections.
type ExamStructure struct {
	ID              int                    `json:"id" gorm:"primaryKey"`
	Name            string                 `json:"name" gorm:"size:200;not null"`
	ClassLevelID    int                    `json:"class_level_id" gorm:"not null;index"`
	SubjectID       *int                   `json:"subject_id,omitempty" gorm:"index"`
	Description     string                 `json:"description"`
	Instructions    string                 `json:"instructions"`
	DurationMinutes int                    `json:"duration_minutes" gorm:"not null"`
	IsActive        bool                   `json:"is_active" gorm:"not null;default:true"`
	Sections        []ExamStructureSection `json:"sections" gorm:"foreignKey:StructureID;constraint:OnDelete:CASCADE"`
	TotalQuestions  int                    `json:"total_questions" gorm:"-"`
	TotalMarks      float64                `json:"total_marks" gorm:"-"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// ComputeTotals fills TotalQuestions and TotalMarks from the sections.
func (s *ExamStructure) ComputeTotals() {
	s.TotalQuestions = 0
	s.TotalMarks = 0
	for _, sec := range s.Sections {
		s.TotalQuestions += sec.QuestionCount
		s.TotalMarks += float64(sec.QuestionCount) * sec.MarksPerQuestion
	}
}

// ExamStructureSection describes how one block of the paper is drawn.
// A nil QuestionType or Difficulty matches any value; empty ChapterIDs
// matches every chapter of the subject.
type ExamStructureSection struct {
	ID               int           `json:"id" gorm:"primaryKey"`
	StructureID      int           `json:"structure_id" gorm:"not null;uniqueIndex:idx_sections_structure_order"`
	Name             string        `json:"name" gorm:"size:200;not null"`
	QuestionType     *QuestionType `json:"question_type,omitempty" gorm:"size:30"`
	ChapterIDs       IntList       `json:"chapter_ids" gorm:"column:chapter_ids;type:jsonb;not null"`
	Difficulty       *string       `json:"difficulty,omitempty" gorm:"size:10"`
	QuestionCount    int           `json:"question_count" gorm:"not null"`
	MarksPerQuestion float64       `json:"marks_per_question" gorm:"not null"`
	NegativeMarks    float64       `json:"negative_marks" gorm:"not null;default:0"`
	SectionOrder     int           `json:"section_order" gorm:"not null;uniqueIndex:idx_sections_structure_order"`
}

type ExamStructureSectionRequest struct {
	Name             string        `json:"name" binding:"required,min=1,max=200"`
	QuestionType     *QuestionType `json:"question_type" binding:"omitempty,question_type"`
	ChapterIDs       []int         `json:"chapter_ids" binding:"omitempty,dive,min=1"`
	Difficulty       *string       `json:"difficulty" binding:"omitempty,difficulty"`
	QuestionCount    int           `json:"question_count" binding:"required,min=1,max=500"`
	MarksPerQuestion float64       `json:"marks_per_question" binding:"required,gt=0"`
	NegativeMarks    float64       `json:"negative_marks" binding:"gte=0"`
	SectionOrder     int           `json:"section_order" binding:"min=0"`
}

type ExamStructureRequest struct {
	Name            string                        `json:"name" binding:"required,min=2,max=200"`
	ClassLevelID    int                           `json:"class_level_id" binding:"required,min=1"`
	SubjectID       *int                          `json:"subject_id" binding:"omitempty,min=1"`
	Description     string                        `json:"description" binding:"omitempty,max=2000"`
	Instructions    string                        `json:"instructions" binding:"omitempty,max=10000"`
	DurationMinutes int                           `json:"duration_minutes" binding:"required,min=1,max=600"`
	Sections        []ExamStructureSectionRequest `json:"sections" binding:"required,min=1,max=50,dive"`
}

// ExamStructureFilter narrows the structure list.
type ExamStructureFilter struct {
	ListQuery
	ClassLevelID int `form:"class_level_id"`
	SubjectID    int `form:"subject_id"`
}

// SectionAvailability reports how many questions can satisfy a section.
type SectionAvailability struct {
	SectionID    int    `json:"section_id"`
	Name         string `json:"name"`
	Required     int    `json:"required"`
	Available    int    `json:"available"`
	Insufficient bool   `json:"insufficient"`
}

// StructurePreview is the result of previewing a structure.
type StructurePreview struct {
	StructureID    int                   `json:"structure_id"`
	TotalQuestions int                   `json:"total_questions"`
	TotalMarks     float64               `json:"total_marks"`
	Ready          bool                  `json:"ready"`
	Sections       []SectionAvailability `json:"sections"`
}

// SectionCriteria is the question filter derived from a section.
type SectionCriteria struct {
	SubjectID    *int
	ClassLevelID int
	QuestionType *QuestionType
	ChapterIDs   []int
	Difficulty   *string
}

// Criteria derives the question filter for sec within s.
func (s *ExamStructure) Criteria(sec ExamStructureSection) SectionCriteria {
	return SectionCriteria{
		SubjectID:    s.SubjectID,
		ClassLevelID: s.ClassLevelID,
		QuestionType: sec.QuestionType,
		ChapterIDs:   sec.ChapterIDs,
		Difficulty:   sec.Difficulty,
	}
}
