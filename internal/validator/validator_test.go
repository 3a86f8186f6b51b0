package validator

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

type option struct {
	Key string `json:"key" binding:"required"`
}

type payload struct {
	Name    string   `json:"name" binding:"required,min=2"`
	Options []option `json:"options" binding:"dive"`
}

func TestStructReportsJSONFieldPaths(t *testing.T) {
	fields := Struct(&payload{Name: "x", Options: []option{{Key: "A"}, {}}})

	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "options[1].key")
	assert.Equal(t, "key is a required field", fields["options[1].key"])
}

func TestStructValid(t *testing.T) {
	assert.Nil(t, Struct(&payload{Name: "ok", Options: []option{{Key: "A"}}}))
}

func TestTranslateNonValidationError(t *testing.T) {
	fields := TranslateErrors(errors.New("unexpected EOF"))
	assert.Equal(t, map[string]string{"detail": "unexpected EOF"}, fields)
}

type questionInput struct {
	Type       string   `json:"question_type" binding:"required,question_type"`
	Difficulty *string  `json:"difficulty" binding:"omitempty,difficulty"`
	Text       string   `json:"text" binding:"notblank"`
	Tags       []string `form:"tags" binding:"omitempty,dive,question_type"`
}

func TestDomainTags(t *testing.T) {
	hard, extreme := "hard", "extreme"

	tests := []struct {
		name  string
		in    questionInput
		field string
	}{
		{"valid", questionInput{Type: "essay", Difficulty: &hard, Text: "Explain."}, ""},
		{"unknown type", questionInput{Type: "matching", Text: "x"}, "question_type"},
		{"unknown difficulty", questionInput{Type: "essay", Difficulty: &extreme, Text: "x"}, "difficulty"},
		{"blank text", questionInput{Type: "essay", Text: "   "}, "text"},
		{"form tag names", questionInput{Type: "essay", Text: "x", Tags: []string{"numeric", "bogus"}}, "tags[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := Struct(&tt.in)
			if tt.field == "" {
				assert.Nil(t, fields)
				return
			}
			assert.Len(t, fields, 1)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestTranslateErrorsLocalized(t *testing.T) {
	Setup()
	err := binding.Validator.ValidateStruct(&questionInput{Type: "essay", Text: " "})

	en := TranslateErrors(err, "fr-FR,fr;q=0.9")
	assert.Equal(t, "text must not be blank", en["text"])

	id := TranslateErrors(err, "id-ID,id;q=0.9,en;q=0.5")
	assert.Equal(t, "text tidak boleh kosong", id["text"])
}
