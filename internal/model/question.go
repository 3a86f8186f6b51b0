package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType selects the answer format and the grading rule.
type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionFillBlank      QuestionType = "fill_blank"
	QuestionNumeric        QuestionType = "numeric"
	QuestionEssay          QuestionType = "essay"
)

// QuestionTypes lists every supported type.
var QuestionTypes = []QuestionType{
	QuestionSingleChoice,
	QuestionMultipleChoice,
	QuestionTrueFalse,
	QuestionFillBlank,
	QuestionNumeric,
	QuestionEssay,
}

// IsChoice reports whether answers reference option keys.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultipleChoice
}

// Valid reports whether t is a known type.
func (t QuestionType) Valid() bool {
	for _, qt := range QuestionTypes {
		if qt == t {
			return true
		}
	}
	return false
}

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// ValidDifficulty reports whether d is one of the three difficulty levels.
func ValidDifficulty(d string) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

const (
	SourceManual = "manual"
	SourceAI     = "ai"
)

// Option is one choice of a choice question.
type Option struct {
	Key      string `json:"key" binding:"required,max=10"`
	Text     string `json:"text" binding:"required,max=2000"`
	ImageURL string `json:"image_url,omitempty" binding:"omitempty,max=500"`
}

// Question is a single bank question.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	SubjectID     int             `json:"subject_id"`
	ChapterID     *int            `json:"chapter_id,omitempty"`
	QBankID       *uuid.UUID      `json:"qbank_id,omitempty"`
	QuestionType  QuestionType    `json:"question_type"`
	QuestionText  string          `json:"question_text"`
	Options       []Option        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
	Difficulty    string          `json:"difficulty"`
	Marks         float64         `json:"marks"`
	Tolerance     *float64        `json:"tolerance,omitempty"`
	ImageURL      string          `json:"image_url"`
	Source        string          `json:"source"`
	IsActive      bool            `json:"is_active"`
	CreatedBy     *int            `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// QuestionRequest is the payload for creating or updating a question.
type QuestionRequest struct {
	SubjectID     int             `json:"subject_id" binding:"required,min=1"`
	ChapterID     *int            `json:"chapter_id" binding:"omitempty,min=1"`
	QBankID       *uuid.UUID      `json:"qbank_id"`
	QuestionType  QuestionType    `json:"question_type" binding:"required,question_type"`
	QuestionText  string          `json:"question_text" binding:"required,min=1,max=10000"`
	Options       []Option        `json:"options" binding:"omitempty,max=10,dive"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Explanation   string          `json:"explanation" binding:"omitempty,max=10000"`
	Difficulty    string          `json:"difficulty" binding:"omitempty,difficulty"`
	Marks         float64         `json:"marks" binding:"omitempty,gt=0,lte=1000"`
	Tolerance     *float64        `json:"tolerance" binding:"omitempty,gte=0"`
	ImageURL      string          `json:"image_url" binding:"omitempty,max=500"`
}

// ToQuestion builds a Question with defaults applied.
func (r QuestionRequest) ToQuestion() *Question {
	q := &Question{
		SubjectID:     r.SubjectID,
		ChapterID:     r.ChapterID,
		QBankID:       r.QBankID,
		QuestionType:  r.QuestionType,
		QuestionText:  r.QuestionText,
		Options:       r.Options,
		CorrectAnswer: r.CorrectAnswer,
		Explanation:   r.Explanation,
		Difficulty:    r.Difficulty,
		Marks:         r.Marks,
		Tolerance:     r.Tolerance,
		ImageURL:      r.ImageURL,
		Source:        SourceManual,
		IsActive:      true,
	}
	if q.Difficulty == "" {
		q.Difficulty = DifficultyMedium
	}
	if q.Marks == 0 {
		q.Marks = 1
	}
	if q.Options == nil {
		q.Options = []Option{}
	}
	if len(q.CorrectAnswer) == 0 {
		q.CorrectAnswer = json.RawMessage("null")
	}
	return q
}

// QuestionFilter narrows the question list.
type QuestionFilter struct {
	ListQuery
	SubjectID    int    `form:"subject_id"`
	ChapterID    int    `form:"chapter_id"`
	QBankID      string `form:"qbank_id"`
	QuestionType string `form:"question_type"`
	Difficulty   string `form:"difficulty"`
	Source       string `form:"source"`
}

// AssignQuestionsRequest moves questions into (or out of) a bank.
type AssignQuestionsRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids" binding:"required,min=1,max=500"`
	QBankID     *uuid.UUID  `json:"qbank_id"`
}

// AssignQuestionsResult reports how many questions moved. Skipped counts ids
// that do not exist or belong to another subject than the bank.
type AssignQuestionsResult struct {
	Updated int64 `json:"updated"`
	Skipped int64 `json:"skipped"`
}

// BulkQuestionsRequest creates many questions at once.
type BulkQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"required,min=1,max=500,dive"`
}
