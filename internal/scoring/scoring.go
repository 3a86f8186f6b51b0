// Package scoring grades answers against question keys and renders them for
// review screens.
package scoring

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-admin/internal/model"
)

const floatEpsilon = 1e-9

// NotAnswered is shown for questions without an answer.
const NotAnswered = "Not answered"

// Key is everything needed to grade one question.
type Key struct {
	Type          model.QuestionType
	Options       []model.Option
	Correct       json.RawMessage
	Tolerance     *float64
	Marks         float64
	NegativeMarks float64
}

// KeyFromPaper builds a Key from a paper slot.
func KeyFromPaper(p model.PaperKey) Key {
	return Key{
		Type:          p.QuestionType,
		Options:       p.Options,
		Correct:       p.CorrectAnswer,
		Tolerance:     p.Tolerance,
		Marks:         p.Marks,
		NegativeMarks: p.NegativeMarks,
	}
}

// Result is the outcome of checking one answer.
type Result struct {
	Answered bool    `json:"answered"`
	Gradable bool    `json:"gradable"`
	Correct  bool    `json:"correct"`
	Marks    float64 `json:"marks"`
}

// CheckAnswer grades answer against k. Correct answers earn k.Marks and
// wrong ones cost k.NegativeMarks. Essays are never auto-graded.
func CheckAnswer(k Key, answer json.RawMessage) Result {
	if isEmpty(answer) {
		return Result{Gradable: k.Type != model.QuestionEssay}
	}
	if k.Type == model.QuestionEssay {
		return Result{Answered: true}
	}

	res := Result{Answered: true, Gradable: true, Correct: matches(k, answer)}
	if res.Correct {
		res.Marks = k.Marks
	} else {
		res.Marks = -k.NegativeMarks
	}
	return res
}

func matches(k Key, answer json.RawMessage) bool {
	switch k.Type {
	case model.QuestionSingleChoice:
		got, ok := keys(answer)
		if !ok || len(got) != 1 {
			return false
		}
		want, ok := keys(k.Correct)
		return ok && len(want) == 1 && got[0] == want[0]

	case model.QuestionMultipleChoice:
		got, ok := keys(answer)
		if !ok {
			return false
		}
		want, ok := keys(k.Correct)
		return ok && len(want) > 0 && sameSet(got, want)

	case model.QuestionTrueFalse:
		got, ok := boolean(answer)
		if !ok {
			return false
		}
		want, ok := boolean(k.Correct)
		return ok && got == want

	case model.QuestionFillBlank:
		got, ok := texts(answer)
		if !ok || len(got) != 1 {
			return false
		}
		accepted, ok := texts(k.Correct)
		if !ok {
			return false
		}
		norm := normalizeText(got[0])
		for _, a := range accepted {
			if n := normalizeText(a); n != "" && n == norm {
				return true
			}
		}
		return false

	case model.QuestionNumeric:
		got, ok := number(answer)
		if !ok {
			return false
		}
		want, ok := number(k.Correct)
		if !ok {
			return false
		}
		tol := 0.0
		if k.Tolerance != nil && *k.Tolerance > 0 {
			tol = *k.Tolerance
		}
		return math.Abs(got-want) <= tol+floatEpsilon
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

// FormatUserAnswer renders a student's answer for display.
func FormatUserAnswer(k Key, answer json.RawMessage) string {
	if isEmpty(answer) {
		return NotAnswered
	}
	return render(k, answer)
}

// FormatCorrectAnswer renders the answer key. Essays without a model
// answer render as an empty string.
func FormatCorrectAnswer(k Key) string {
	if isEmpty(k.Correct) {
		return ""
	}
	switch k.Type {
	case model.QuestionFillBlank:
		if list, ok := texts(k.Correct); ok {
			return strings.Join(list, " / ")
		}
	case model.QuestionNumeric:
		if v, ok := number(k.Correct); ok {
			s := formatNumber(v)
			if k.Tolerance != nil && *k.Tolerance > 0 {
				s += " (± " + formatNumber(*k.Tolerance) + ")"
			}
			return s
		}
	}
	return render(k, k.Correct)
}

func render(k Key, raw json.RawMessage) string {
	switch k.Type {
	case model.QuestionSingleChoice, model.QuestionMultipleChoice:
		list, ok := keys(raw)
		if !ok {
			break
		}
		if k.Type == model.QuestionMultipleChoice {
			sort.Strings(list)
		}
		parts := make([]string, 0, len(list))
		for _, key := range list {
			parts = append(parts, optionLabel(k.Options, key))
		}
		return strings.Join(parts, ", ")

	case model.QuestionTrueFalse:
		if b, ok := boolean(raw); ok {
			if b {
				return "True"
			}
			return "False"
		}

	case model.QuestionNumeric:
		if v, ok := number(raw); ok {
			return formatNumber(v)
		}
	}

	if list, ok := texts(raw); ok {
		return strings.Join(list, ", ")
	}
	return string(raw)
}

func optionLabel(opts []model.Option, key string) string {
	for _, o := range opts {
		if normalizeKey(o.Key) == key {
			return strings.TrimSpace(o.Key) + ". " + o.Text
		}
	}
	return key
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// QuestionResult pairs a paper question with its grade.
type QuestionResult struct {
	QuestionID uuid.UUID
	Result
}

// Summary is the graded outcome of an attempt.
type Summary struct {
	Score      float64
	MaxScore   float64
	Correct    int
	Wrong      int
	Unanswered int
	Pending    int
	Results    []QuestionResult
}

// GradeAttempt grades every paper question. Questions missing from answers
// count as unanswered. The total is floored at zero.
func GradeAttempt(paper []model.PaperKey, answers map[uuid.UUID]json.RawMessage) Summary {
	s := Summary{Results: make([]QuestionResult, 0, len(paper))}
	for _, p := range paper {
		res := CheckAnswer(KeyFromPaper(p), answers[p.QuestionID])
		s.MaxScore += p.Marks
		s.Score += res.Marks

		switch {
		case !res.Answered:
			s.Unanswered++
		case !res.Gradable:
			s.Pending++
		case res.Correct:
			s.Correct++
		default:
			s.Wrong++
		}
		s.Results = append(s.Results, QuestionResult{QuestionID: p.QuestionID, Result: res})
	}
	if s.Score < 0 {
		s.Score = 0
	}
	s.Score = math.Round(s.Score*100) / 100
	return s
}
