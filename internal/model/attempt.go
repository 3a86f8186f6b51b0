package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the state of a student's attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptExpired    AttemptStatus = "expired"
)

// ExamAttempt is one student's sitting of a scheduled exam.
type ExamAttempt struct {
	ID              uuid.UUID     `json:"id"`
	ExamID          uuid.UUID     `json:"exam_id"`
	UserID          int           `json:"user_id"`
	Status          AttemptStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	ExpiresAt       time.Time     `json:"expires_at"`
	SubmittedAt     *time.Time    `json:"submitted_at,omitempty"`
	Score           *float64      `json:"score,omitempty"`
	MaxScore        *float64      `json:"max_score,omitempty"`
	CorrectCount    int           `json:"correct_count"`
	WrongCount      int           `json:"wrong_count"`
	UnansweredCount int           `json:"unanswered_count"`
	PendingCount    int           `json:"pending_count"`
	IsActive        bool          `json:"is_active"`
	StudentName     string        `json:"student_name,omitempty"`
	StudentEmail    string        `json:"student_email,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ExamAnswer is a stored answer for one paper question.
type ExamAnswer struct {
	AttemptID    uuid.UUID       `json:"attempt_id"`
	QuestionID   uuid.UUID       `json:"question_id"`
	Answer       json.RawMessage `json:"answer"`
	IsCorrect    *bool           `json:"is_correct,omitempty"`
	MarksAwarded *float64        `json:"marks_awarded,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AnswerRecord is the queue payload the answer worker persists.
type AnswerRecord struct {
	AttemptID  string          `json:"attempt_id"`
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
	SavedAt    time.Time       `json:"saved_at"`
	Retries    int             `json:"retries,omitempty"`
}

// GradedAnswer is the per-question result written on submit.
type GradedAnswer struct {
	QuestionID   uuid.UUID
	Answer       json.RawMessage
	IsCorrect    *bool
	MarksAwarded float64
}

// AttemptResult is the summary persisted when an attempt closes.
type AttemptResult struct {
	Status          AttemptStatus
	SubmittedAt     time.Time
	Score           float64
	MaxScore        float64
	CorrectCount    int
	WrongCount      int
	UnansweredCount int
	PendingCount    int
	Answers         []GradedAnswer
}

type SaveAnswerRequest struct {
	QuestionID uuid.UUID       `json:"question_id" binding:"required"`
	Answer     json.RawMessage `json:"answer"`
}

// StartAttemptResponse returns the attempt with the student's paper.
type StartAttemptResponse struct {
	Attempt *ExamAttempt               `json:"attempt"`
	Paper   *ExamPaper                 `json:"paper"`
	Answers map[string]json.RawMessage `json:"answers"`
}

// AttemptFilter narrows the per-exam attempt list.
type AttemptFilter struct {
	ListQuery
	AttemptStatus string `form:"attempt_status"`
}

// AttemptQuestionDetail is one row of the attempt review.
type AttemptQuestionDetail struct {
	QuestionID      uuid.UUID       `json:"question_id"`
	OrderNum        int             `json:"order_num"`
	SectionName     string          `json:"section_name"`
	QuestionType    QuestionType    `json:"question_type"`
	QuestionText    string          `json:"question_text"`
	Options         []Option        `json:"options"`
	UserAnswer      json.RawMessage `json:"user_answer"`
	FormattedAnswer string          `json:"formatted_answer"`
	CorrectAnswer   string          `json:"correct_answer"`
	Explanation     string          `json:"explanation"`
	Answered        bool            `json:"answered"`
	Gradable        bool            `json:"gradable"`
	IsCorrect       *bool           `json:"is_correct"`
	MarksAwarded    float64         `json:"marks_awarded"`
	Marks           float64         `json:"marks"`
}

// AttemptDetails is the admin review of a single attempt.
type AttemptDetails struct {
	Attempt   *ExamAttempt            `json:"attempt"`
	ExamTitle string                  `json:"exam_title"`
	Student   *UserSummary            `json:"student"`
	Questions []AttemptQuestionDetail `json:"questions"`
}

// QuestionStat is the correctness rate of one paper question.
type QuestionStat struct {
	QuestionID   uuid.UUID `json:"question_id"`
	OrderNum     int       `json:"order_num"`
	QuestionText string    `json:"question_text"`
	Answered     int       `json:"answered"`
	Correct      int       `json:"correct"`
}

// MonitorEvent is published on the exam monitor channel.
type MonitorEvent struct {
	Type       string     `json:"type"`
	ExamID     uuid.UUID  `json:"exam_id"`
	AttemptID  uuid.UUID  `json:"attempt_id"`
	UserID     int        `json:"user_id"`
	QuestionID *uuid.UUID `json:"question_id,omitempty"`
	Score      *float64   `json:"score,omitempty"`
	At         time.Time  `json:"at"`
}

const (
	MonitorAttemptStarted   = "attempt_started"
	MonitorAnswerSaved      = "answer_saved"
	MonitorAttemptSubmitted = "attempt_submitted"
	MonitorAttemptExpired   = "attempt_expired"
)
