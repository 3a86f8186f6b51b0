package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExamStatus is the lifecycle state of a scheduled exam.
type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamScheduled ExamStatus = "scheduled"
	ExamLive      ExamStatus = "live"
	ExamCompleted ExamStatus = "completed"
	ExamCancelled ExamStatus = "cancelled"
)

// Editable reports whether exam settings may still change.
func (s ExamStatus) Editable() bool {
	return s == ExamDraft || s == ExamScheduled
}

// ScheduledExam is an exam instance built from a structure.
type ScheduledExam struct {
	ID               uuid.UUID  `json:"id"`
	StructureID      int        `json:"structure_id"`
	SchoolID         *int       `json:"school_id,omitempty"`
	Title            string     `json:"title"`
	ClassLevelID     int        `json:"class_level_id"`
	SubjectID        *int       `json:"subject_id,omitempty"`
	StartAt          time.Time  `json:"start_at"`
	EndAt            time.Time  `json:"end_at"`
	DurationMinutes  int        `json:"duration_minutes"`
	Status           ExamStatus `json:"status"`
	ShuffleQuestions bool       `json:"shuffle_questions"`
	ShowResults      bool       `json:"show_results"`
	Instructions     string     `json:"instructions"`
	QuestionCount    int        `json:"question_count"`
	TotalMarks       float64    `json:"total_marks"`
	CreatedBy        *int       `json:"created_by,omitempty"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// OpenAt reports whether now falls inside the exam window.
func (e *ScheduledExam) OpenAt(now time.Time) bool {
	return !now.Before(e.StartAt) && now.Before(e.EndAt)
}

type ScheduledExamRequest struct {
	StructureID      int       `json:"structure_id" binding:"required,min=1"`
	SchoolID         *int      `json:"school_id" binding:"omitempty,min=1"`
	Title            string    `json:"title" binding:"required,min=3,max=255"`
	StartAt          time.Time `json:"start_at" binding:"required"`
	EndAt            time.Time `json:"end_at" binding:"required,gtfield=StartAt"`
	DurationMinutes  int       `json:"duration_minutes" binding:"omitempty,min=1,max=600"`
	ShuffleQuestions bool      `json:"shuffle_questions"`
	ShowResults      bool      `json:"show_results"`
	Instructions     string    `json:"instructions" binding:"omitempty,max=10000"`
}

// ScheduledExamFilter narrows the scheduled exam list.
type ScheduledExamFilter struct {
	ListQuery
	ExamStatus   string    `form:"exam_status"`
	ClassLevelID int       `form:"class_level_id"`
	SubjectID    int       `form:"subject_id"`
	SchoolID     int       `form:"school_id"`
	From         time.Time `form:"from" time_format:"2006-01-02"`
	To           time.Time `form:"to" time_format:"2006-01-02"`
}

// ExamQuestion is one frozen slot of a generated paper.
type ExamQuestion struct {
	ExamID        uuid.UUID `json:"exam_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	SectionID     int       `json:"section_id"`
	SectionName   string    `json:"section_name"`
	OrderNum      int       `json:"order_num"`
	Marks         float64   `json:"marks"`
	NegativeMarks float64   `json:"negative_marks"`
}

// PaperQuestion is what a student sees; no answer key.
type PaperQuestion struct {
	ID           uuid.UUID    `json:"id"`
	SectionID    int          `json:"section_id"`
	SectionName  string       `json:"section_name"`
	OrderNum     int          `json:"order_num"`
	QuestionType QuestionType `json:"question_type"`
	QuestionText string       `json:"question_text"`
	Options      []Option     `json:"options"`
	ImageURL     string       `json:"image_url,omitempty"`
	Marks        float64      `json:"marks"`
}

// ToPaperQuestion strips the answer key.
func (k PaperKey) ToPaperQuestion() PaperQuestion {
	return PaperQuestion{
		ID:           k.QuestionID,
		SectionID:    k.SectionID,
		SectionName:  k.SectionName,
		OrderNum:     k.OrderNum,
		QuestionType: k.QuestionType,
		QuestionText: k.QuestionText,
		Options:      k.Options,
		ImageURL:     k.ImageURL,
		Marks:        k.Marks,
	}
}

// ExamPaper is the Redis-cached student payload.
type ExamPaper struct {
	ExamID          uuid.UUID       `json:"exam_id"`
	Title           string          `json:"title"`
	DurationMinutes int             `json:"duration_minutes"`
	Instructions    string          `json:"instructions"`
	EndAt           time.Time       `json:"end_at"`
	Questions       []PaperQuestion `json:"questions"`
}

// PaperKey is a paper slot joined with its answer key, used for grading.
type PaperKey struct {
	QuestionID    uuid.UUID       `json:"question_id"`
	SectionID     int             `json:"section_id"`
	SectionName   string          `json:"section_name"`
	OrderNum      int             `json:"order_num"`
	QuestionType  QuestionType    `json:"question_type"`
	QuestionText  string          `json:"question_text"`
	Options       []Option        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
	Tolerance     *float64        `json:"tolerance,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	Marks         float64         `json:"marks"`
	NegativeMarks float64         `json:"negative_marks"`
}

// AvailableExam is a live exam listed for a student.
type AvailableExam struct {
	ScheduledExam
	AttemptID     *uuid.UUID     `json:"attempt_id,omitempty"`
	AttemptStatus *AttemptStatus `json:"attempt_status,omitempty"`
}
