package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractionStatus is the state of an AI extraction job.
type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "pending"
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionCompleted  ExtractionStatus = "completed"
	ExtractionFailed     ExtractionStatus = "failed"
	ExtractionImported   ExtractionStatus = "imported"
)

// ExtractionOptions tune the prompt for a job.
type ExtractionOptions struct {
	QuestionTypes []QuestionType `json:"question_types,omitempty"`
	MaxQuestions  int            `json:"max_questions,omitempty"`
	Language      string         `json:"language,omitempty"`
}

// ExtractedQuestion is a draft question produced by a model.
type ExtractedQuestion struct {
	QuestionType  QuestionType    `json:"question_type" binding:"required,question_type"`
	QuestionText  string          `json:"question_text" binding:"required,min=1,max=10000"`
	Options       []Option        `json:"options" binding:"omitempty,max=10,dive"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	Explanation   string          `json:"explanation" binding:"omitempty,max=10000"`
	Difficulty    string          `json:"difficulty" binding:"omitempty,difficulty"`
	Marks         float64         `json:"marks" binding:"omitempty,gt=0,lte=1000"`
	Tolerance     *float64        `json:"tolerance" binding:"omitempty,gte=0"`
}

// ExtractionIssue explains why an extracted item was rejected.
type ExtractionIssue struct {
	Index   int               `json:"index"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ExtractionResult is the validated output stored on a job.
type ExtractionResult struct {
	Questions []ExtractedQuestion `json:"questions"`
	Issues    []ExtractionIssue   `json:"issues"`
}

// ExtractionJob tracks one uploaded PDF through extraction and import.
type ExtractionJob struct {
	ID            uuid.UUID         `json:"id"`
	SubjectID     int               `json:"subject_id"`
	ChapterID     *int              `json:"chapter_id,omitempty"`
	QBankID       *uuid.UUID        `json:"qbank_id,omitempty"`
	FileName      string            `json:"file_name"`
	FilePath      string            `json:"-"`
	Provider      string            `json:"provider"`
	Options       ExtractionOptions `json:"options"`
	Status        ExtractionStatus  `json:"status"`
	Error         string            `json:"error,omitempty"`
	RawOutput     string            `json:"-"`
	Result        *ExtractionResult `json:"result,omitempty"`
	QuestionCount int               `json:"question_count"`
	ImportedCount int               `json:"imported_count"`
	CreatedBy     *int              `json:"created_by,omitempty"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// CreateExtractionRequest is the multipart form accompanying the PDF.
type CreateExtractionRequest struct {
	SubjectID     int      `form:"subject_id" binding:"required,min=1"`
	ChapterID     *int     `form:"chapter_id" binding:"omitempty,min=1"`
	QBankID       string   `form:"qbank_id" binding:"omitempty,uuid"`
	Provider      string   `form:"provider" binding:"omitempty,oneof=gemini openai"`
	QuestionTypes []string `form:"question_types" binding:"omitempty,dive,question_type"`
	MaxQuestions  int      `form:"max_questions" binding:"omitempty,min=1,max=200"`
	Language      string   `form:"language" binding:"omitempty,max=20"`
}

// ImportExtractionRequest selects which extracted items to import. An empty
// list imports everything.
type ImportExtractionRequest struct {
	Indices []int `json:"indices" binding:"omitempty,dive,min=0"`
}

// ExtractionFilter narrows the job list.
type ExtractionFilter struct {
	ListQuery
	JobStatus string `form:"job_status"`
	SubjectID int    `form:"subject_id"`
}
