package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Gemini calls the generateContent REST endpoint with the PDF inlined.
type Gemini struct {
	client *resty.Client
	model  string
}

// NewGemini creates a Gemini provider.
func NewGemini(baseURL, apiKey, modelName string, timeout time.Duration) *Gemini {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("x-goog-api-key", apiKey).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Gemini{client: client, model: modelName}
}

func (g *Gemini) Name() string { return "gemini" }

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseMIMEType string  `json:"responseMimeType"`
		Temperature      float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Extract sends the document and prompt and returns the first candidate's text.
func (g *Gemini) Extract(ctx context.Context, doc Document, prompt string) (string, error) {
	mime := doc.MIMEType
	if mime == "" {
		mime = "application/pdf"
	}

	var req geminiRequest
	req.Contents = []geminiContent{{
		Role: "user",
		Parts: []geminiPart{
			{InlineData: &geminiInlineData{MIMEType: mime, Data: doc.Data}},
			{Text: prompt},
		},
	}}
	req.GenerationConfig.ResponseMIMEType = "application/json"
	req.GenerationConfig.Temperature = 0.2

	var out geminiResponse
	var apiErr geminiError
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1beta/models/" + g.model + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("gemini: %s (%d %s)", apiErr.Error.Message, resp.StatusCode(), apiErr.Error.Status)
		}
		return "", fmt.Errorf("gemini: unexpected status %d", resp.StatusCode())
	}

	if len(out.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
