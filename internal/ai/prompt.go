package ai

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-admin/internal/model"
)

// PromptOptions describe the context of an extraction.
type PromptOptions struct {
	ClassLevel    string
	Subject       string
	Chapter       string
	QuestionTypes []model.QuestionType
	MaxQuestions  int
	Language      string
}

const schemaDescription = `{
  "questions": [
    {
      "question_type": "single_choice | multiple_choice | true_false | fill_blank | numeric | essay",
      "question_text": "string",
      "options": [{"key": "A", "text": "string"}],
      "correct_answer": "see the rules per type",
      "explanation": "string",
      "difficulty": "easy | medium | hard",
      "marks": 1,
      "tolerance": 0
    }
  ]
}`

var answerRules = map[model.QuestionType]string{
	model.QuestionSingleChoice:   `single_choice: at least 2 options with unique keys; correct_answer is one key, e.g. "B".`,
	model.QuestionMultipleChoice: `multiple_choice: at least 2 options with unique keys; correct_answer is a list of keys, e.g. ["A","C"].`,
	model.QuestionTrueFalse:      `true_false: no options; correct_answer is true or false.`,
	model.QuestionFillBlank:      `fill_blank: no options; correct_answer is a list of accepted answers, e.g. ["photosynthesis"].`,
	model.QuestionNumeric:        `numeric: no options; correct_answer is a number; tolerance is the allowed absolute error (0 for exact).`,
	model.QuestionEssay:          `essay: no options; correct_answer is a short model answer or null.`,
}

// BuildExtractionPrompt describes the task and the exact JSON the model must
// return.
func BuildExtractionPrompt(o PromptOptions) string {
	types := o.QuestionTypes
	if len(types) == 0 {
		types = model.QuestionTypes
	}
	limit := o.MaxQuestions
	if limit < 1 {
		limit = 50
	}

	var sb strings.Builder
	sb.WriteString("You extract exam questions from the attached school document.\n\n")

	sb.WriteString("CONTEXT:\n")
	if o.ClassLevel != "" {
		sb.WriteString("Class level: " + o.ClassLevel + "\n")
	}
	if o.Subject != "" {
		sb.WriteString("Subject: " + o.Subject + "\n")
	}
	if o.Chapter != "" {
		sb.WriteString("Chapter: " + o.Chapter + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString(fmt.Sprintf("- Return at most %d questions.\n", limit))
	sb.WriteString("- Only use these question types: ")
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	sb.WriteString(strings.Join(names, ", ") + ".\n")
	sb.WriteString("- Copy questions that exist in the document. Do not invent facts that are not in it.\n")
	if o.Language != "" {
		sb.WriteString("- Write questions, options and explanations in this language: " + o.Language + ".\n")
	} else {
		sb.WriteString("- Keep the language of the document.\n")
	}
	sb.WriteString("- Respond with a single JSON object and nothing else.\n\n")

	sb.WriteString("ANSWER RULES:\n")
	for _, t := range types {
		if rule, ok := answerRules[t]; ok {
			sb.WriteString("- " + rule + "\n")
		}
	}
	sb.WriteString("\n")

	sb.WriteString("JSON SCHEMA:\n")
	sb.WriteString(schemaDescription)
	sb.WriteString("\n")
	return sb.String()
}
