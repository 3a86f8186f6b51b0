package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// School is a participating school.
type School struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:200;not null"`
	Code      string    `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone" gorm:"size:50"`
	Email     string    `json:"email" gorm:"size:255"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SchoolRequest struct {
	Name    string `json:"name" binding:"required,min=2,max=200"`
	Code    string `json:"code" binding:"required,min=2,max=50"`
	Address string `json:"address" binding:"omitempty,max=500"`
	Phone   string `json:"phone" binding:"omitempty,max=50"`
	Email   string `json:"email" binding:"omitempty,email,max=255"`
}

// ClassLevel is a grade, e.g. "Grade 10".
type ClassLevel struct {
	ID          int       `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:100;not null;uniqueIndex"`
	LevelOrder  int       `json:"level_order" gorm:"not null;default:0"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ClassLevelRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	LevelOrder  int    `json:"level_order" binding:"min=0"`
	Description string `json:"description" binding:"omitempty,max=1000"`
}

// Subject belongs to a class level.
type Subject struct {
	ID           int         `json:"id" gorm:"primaryKey"`
	ClassLevelID int         `json:"class_level_id" gorm:"not null;uniqueIndex:idx_subjects_level_name"`
	ClassLevel   *ClassLevel `json:"class_level,omitempty" gorm:"foreignKey:ClassLevelID"`
	Name         string      `json:"name" gorm:"size:100;not null;uniqueIndex:idx_subjects_level_name"`
	Code         string      `json:"code" gorm:"size:50"`
	Description  string      `json:"description"`
	IsActive     bool        `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type SubjectRequest struct {
	ClassLevelID int    `json:"class_level_id" binding:"required,min=1"`
	Name         string `json:"name" binding:"required,min=2,max=100"`
	Code         string `json:"code" binding:"omitempty,max=50"`
	Description  string `json:"description" binding:"omitempty,max=1000"`
}

// Chapter belongs to a subject.
type Chapter struct {
	ID           int       `json:"id" gorm:"primaryKey"`
	SubjectID    int       `json:"subject_id" gorm:"not null;uniqueIndex:idx_chapters_subject_name"`
	Subject      *Subject  `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Name         string    `json:"name" gorm:"size:200;not null;uniqueIndex:idx_chapters_subject_name"`
	ChapterOrder int       `json:"chapter_order" gorm:"not null;default:0"`
	Description  string    `json:"description"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ChapterRequest struct {
	SubjectID    int    `json:"subject_id" binding:"required,min=1"`
	Name         string `json:"name" binding:"required,min=1,max=200"`
	ChapterOrder int    `json:"chapter_order" binding:"min=0"`
	Description  string `json:"description" binding:"omitempty,max=1000"`
}

// QuestionBank groups questions of one subject.
type QuestionBank struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SubjectID   int       `json:"subject_id" gorm:"not null;index"`
	Subject     *Subject  `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	AuthorID    *int      `json:"author_id,omitempty" gorm:"index"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (b *QuestionBank) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

type QuestionBankRequest struct {
	SubjectID   int    `json:"subject_id" binding:"required,min=1"`
	Name        string `json:"name" binding:"required,min=3,max=255"`
	Description string `json:"description" binding:"omitempty,max=2000"`
}

// SubjectFilter narrows the subject list.
type SubjectFilter struct {
	ListQuery
	ClassLevelID int `form:"class_level_id"`
}

// ChapterFilter narrows the chapter list.
type ChapterFilter struct {
	ListQuery
	SubjectID int `form:"subject_id"`
}

// QuestionBankFilter narrows the question bank list.
type QuestionBankFilter struct {
	ListQuery
	SubjectID int `form:"subject_id"`
	AuthorID  int `form:"author_id"`
}
