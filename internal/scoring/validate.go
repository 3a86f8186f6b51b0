package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/exstem-admin/internal/model"
)

// ErrInvalidQuestion wraps every ValidateQuestion failure.
var ErrInvalidQuestion = errors.New("invalid question")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuestion, fmt.Sprintf(format, args...))
}

// ValidateQuestion checks that the answer key is consistent with the type.
func ValidateQuestion(t model.QuestionType, options []model.Option, correct json.RawMessage, tolerance *float64) error {
	if !t.Valid() {
		return invalid("unknown question type %q", t)
	}

	if t.IsChoice() {
		known, err := validateOptions(options)
		if err != nil {
			return err
		}
		if isEmpty(correct) {
			return invalid("correct_answer is required")
		}
		got, ok := keys(correct)
		if !ok {
			return invalid("correct_answer must be an option key or a list of keys")
		}
		if t == model.QuestionSingleChoice && len(got) != 1 {
			return invalid("single_choice needs exactly one correct key")
		}
		if len(got) == 0 {
			return invalid("multiple_choice needs at least one correct key")
		}
		for _, k := range got {
			if !known[k] {
				return invalid("correct key %q is not an option", k)
			}
		}
		return nil
	}

	switch t {
	case model.QuestionTrueFalse:
		if isEmpty(correct) {
			return invalid("correct_answer is required")
		}
		if _, ok := boolean(correct); !ok {
			return invalid("true_false needs a boolean correct_answer")
		}
	case model.QuestionFillBlank:
		list, ok := texts(correct)
		if !ok || isEmpty(correct) {
			return invalid("fill_blank needs at least one accepted answer")
		}
		for _, s := range list {
			if strings.TrimSpace(s) == "" {
				return invalid("accepted answers cannot be blank")
			}
		}
	case model.QuestionNumeric:
		if _, ok := number(correct); !ok || isEmpty(correct) {
			return invalid("numeric needs a number correct_answer")
		}
		if tolerance != nil && *tolerance < 0 {
			return invalid("tolerance cannot be negative")
		}
	}
	return nil
}

func validateOptions(options []model.Option) (map[string]bool, error) {
	if len(options) < 2 {
		return nil, invalid("choice questions need at least two options")
	}
	known := make(map[string]bool, len(options))
	for i, o := range options {
		k := normalizeKey(o.Key)
		if k == "" {
			return nil, invalid("option %d has no key", i)
		}
		if strings.TrimSpace(o.Text) == "" && o.ImageURL == "" {
			return nil, invalid("option %s has no text", k)
		}
		if known[k] {
			return nil, invalid("duplicate option key %s", k)
		}
		known[k] = true
	}
	return known, nil
}
