package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-admin/internal/model"
	"github.com/stemsi/exstem-admin/internal/scoring"
	"github.com/stemsi/exstem-admin/internal/validator"
)

var (
	// ErrMalformedOutput means the model output is not the expected JSON.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrNoValidQuestions means the output parsed but every item was rejected.
	ErrNoValidQuestions = errors.New("model output contains no valid questions")
)

type extractionPayload struct {
	Questions []json.RawMessage `json:"questions"`
}

// ParseExtraction decodes and validates model output. Invalid items are
// reported as issues; the call fails only when the JSON is malformed or
// nothing survives validation.
func ParseExtraction(raw string) (*model.ExtractionResult, error) {
	body := stripFences(raw)

	var payload extractionPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if payload.Questions == nil {
		return nil, fmt.Errorf("%w: missing \"questions\" array", ErrMalformedOutput)
	}

	result := &model.ExtractionResult{
		Questions: []model.ExtractedQuestion{},
		Issues:    []model.ExtractionIssue{},
	}
	for i, item := range payload.Questions {
		var q model.ExtractedQuestion
		if err := json.Unmarshal(item, &q); err != nil {
			result.Issues = append(result.Issues, model.ExtractionIssue{Index: i, Message: err.Error()})
			continue
		}
		normalize(&q)

		if fields := validator.Struct(&q); fields != nil {
			result.Issues = append(result.Issues, model.ExtractionIssue{Index: i, Message: "schema validation failed", Fields: fields})
			continue
		}
		if err := scoring.ValidateQuestion(q.QuestionType, q.Options, q.CorrectAnswer, q.Tolerance); err != nil {
			result.Issues = append(result.Issues, model.ExtractionIssue{Index: i, Message: err.Error()})
			continue
		}
		result.Questions = append(result.Questions, q)
	}

	if len(result.Questions) == 0 {
		return result, ErrNoValidQuestions
	}
	return result, nil
}

// normalize fixes harmless variations models tend to produce.
func normalize(q *model.ExtractedQuestion) {
	q.QuestionType = model.QuestionType(strings.ToLower(strings.TrimSpace(string(q.QuestionType))))
	q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))
	q.QuestionText = strings.TrimSpace(q.QuestionText)
	if !q.QuestionType.IsChoice() {
		q.Options = nil
	}
	for i := range q.Options {
		q.Options[i].Key = strings.ToUpper(strings.TrimSpace(q.Options[i].Key))
	}
	if len(bytes.TrimSpace(q.CorrectAnswer)) == 0 {
		q.CorrectAnswer = json.RawMessage("null")
	}
}

// stripFences removes a Markdown code fence around the JSON, if any, and
// trims prose before the first brace.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	if start := strings.IndexByte(s, '{'); start > 0 {
		if end := strings.LastIndexByte(s, '}'); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
