package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Request is any client message. QuestionID and Answer are only read for
// autosave.
type Request struct {
	Action     Action          `json:"action"`
	QuestionID string          `json:"question_id,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
	EventError  Event = "error"
)

type SavedResponse struct {
	Event      Event     `json:"event"`
	QuestionID uuid.UUID `json:"question_id"`
	SavedAt    time.Time `json:"saved_at"`
}

type GradedResponse struct {
	Event        Event    `json:"event"`
	Status       string   `json:"status"`
	Score        *float64 `json:"score,omitempty"`
	MaxScore     *float64 `json:"max_score,omitempty"`
	CorrectCount int      `json:"correct_count"`
	WrongCount   int      `json:"wrong_count"`
	PendingCount int      `json:"pending_count"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
}
