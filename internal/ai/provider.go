// Package ai turns uploaded PDFs into draft questions using a generative
// model.
package ai

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-admin/internal/config"
)

var (
	// ErrProviderUnavailable is returned when a provider is unknown or has
	// no credentials configured.
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("ai provider returned an empty response")
)

// Document is the source file sent to a provider.
type Document struct {
	FileName string
	MIMEType string
	Data     []byte
	// Text is the extracted plain text, filled lazily for text-only providers.
	Text string
}

// Provider produces raw model output for a document and prompt.
type Provider interface {
	Name() string
	Extract(ctx context.Context, doc Document, prompt string) (string, error)
}

// Registry holds the configured providers.
type Registry struct {
	providers map[string]Provider
	def       string
}

// NewRegistry registers every provider that has an API key.
func NewRegistry(cfg config.AIConfig, log zerolog.Logger) *Registry {
	r := &Registry{providers: make(map[string]Provider), def: cfg.DefaultProvider}
	if cfg.GeminiAPIKey != "" {
		r.Register(NewGemini(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout))
	}
	if cfg.OpenAIAPIKey != "" {
		r.Register(NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel))
	}

	l := log.With().Str("component", "ai_registry").Logger()
	if len(r.providers) == 0 {
		l.Warn().Msg("No AI provider configured, extraction jobs will fail")
	} else {
		l.Info().Strs("providers", r.Names()).Str("default", r.def).Msg("AI providers registered")
	}
	return r
}

// Register adds or replaces a provider under its name.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Select returns the named provider, or the default one when name is empty.
func (r *Registry) Select(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = r.def
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderUnavailable
	}
	return p, nil
}

// Default is the name used when a job does not pick a provider.
func (r *Registry) Default() string {
	return r.def
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
