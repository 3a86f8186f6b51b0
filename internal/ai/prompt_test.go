package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/exstem-admin/internal/model"
)

func TestBuildExtractionPrompt(t *testing.T) {
	t.Run("with context and restricted types", func(t *testing.T) {
		p := BuildExtractionPrompt(PromptOptions{
			ClassLevel:    "Grade 10",
			Subject:       "Physics",
			Chapter:       "Kinematics",
			QuestionTypes: []model.QuestionType{model.QuestionNumeric},
			MaxQuestions:  12,
			Language:      "Indonesian",
		})
		assert.Contains(t, p, "Class level: Grade 10")
		assert.Contains(t, p, "Subject: Physics")
		assert.Contains(t, p, "Chapter: Kinematics")
		assert.Contains(t, p, "at most 12 questions")
		assert.Contains(t, p, "Only use these question types: numeric.")
		assert.Contains(t, p, "tolerance is the allowed absolute error")
		assert.NotContains(t, p, "multiple_choice: at least 2 options")
		assert.Contains(t, p, "Indonesian")
		assert.Contains(t, p, `"questions"`)
	})

	t.Run("defaults", func(t *testing.T) {
		p := BuildExtractionPrompt(PromptOptions{})
		assert.Contains(t, p, "at most 50 questions")
		assert.Contains(t, p, "Keep the language of the document.")
		assert.False(t, strings.Contains(p, "Chapter:"))
		for _, qt := range model.QuestionTypes {
			assert.Contains(t, p, string(qt)+":")
		}
	})
}
