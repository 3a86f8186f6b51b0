package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// maxDocumentChars bounds the document text sent in a single request.
const maxDocumentChars = 120000

// OpenAI talks to any OpenAI-compatible chat completion API. The PDF is
// converted to text first since chat models take no file input.
type OpenAI struct {
	api   *openai.Client
	model string
}

// NewOpenAI creates an OpenAI-compatible provider. An empty baseURL uses the
// public OpenAI endpoint.
func NewOpenAI(baseURL, apiKey, modelName string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		api:   openai.NewClientWithConfig(cfg),
		model: modelName,
	}
}

func (o *OpenAI) Name() string { return "openai" }

// Extract sends the prompt as the system message and the document text as the
// user message.
func (o *OpenAI) Extract(ctx context.Context, doc Document, prompt string) (string, error) {
	text := doc.Text
	if text == "" {
		var err error
		if text, err = PDFText(doc.Data); err != nil {
			return "", fmt.Errorf("read %s: %w", doc.FileName, err)
		}
	}
	if r := []rune(text); len(r) > maxDocumentChars {
		text = string(r[:maxDocumentChars])
	}

	resp, err := o.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: "DOCUMENT:\n" + text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
