// Package explain talks to the text-generation service that turns compiler
// diagnostics into explanations, full-file rewrites and tutoring answers.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gsarma/codemate/internal/config"
	"github.com/gsarma/codemate/internal/diagnose"
	"github.com/gsarma/codemate/internal/patch"
)

var (
	// ErrNotConfigured is returned when no API key was supplied or the key was rejected.
	ErrNotConfigured = errors.New("explain: generation service not configured")
	// ErrQuotaExceeded is returned when the service rejected the request for quota reasons.
	ErrQuotaExceeded = errors.New("explain: generation quota exceeded")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("explain: empty response from model")
)

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	Temperature     float32
	MaxOutputTokens int32
}

// ModelInfo describes a model advertised by the service.
type ModelInfo struct {
	Name    string
	Actions []string
}

// Backend is the wire-level client for the generation service.
type Backend interface {
	Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// Explainer builds prompts and post-processes replies.
type Explainer struct {
	backend     Backend
	models      *ModelSelector
	temperature float32
	logger      *zap.Logger
}

// New returns an Explainer. A nil backend yields an Explainer whose every
// call fails with ErrNotConfigured.
func New(backend Backend, cfg config.LLMConfig, logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("explain")
	var lister ModelLister
	if backend != nil {
		lister = backend
	}
	return &Explainer{
		backend:     backend,
		models:      NewModelSelector(lister, cfg.Model, cfg.FallbackModels, logger),
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Explain asks for the three-section explanation of a failed compile.
func (e *Explainer) Explain(ctx context.Context, raw string, c diagnose.Classification) (string, error) {
	return e.generate(ctx, explainPrompt(raw, c), GenerateOptions{Temperature: e.temperature})
}

// FullFix asks for a complete corrected program. Markdown fences are removed
// from the reply.
func (e *Explainer) FullFix(ctx context.Context, source, raw string) (string, error) {
	text, err := e.generate(ctx, fullFixPrompt(source, raw), GenerateOptions{Temperature: e.temperature})
	if err != nil {
		return "", err
	}
	fixed := patch.StripFences(text)
	if fixed == "" {
		return "", ErrEmptyResponse
	}
	return fixed, nil
}

// Answer replies to a free-form programming question in the tone of mode.
func (e *Explainer) Answer(ctx context.Context, question string, mode diagnose.Mode) (string, error) {
	return e.generate(ctx, chatPrompt(question, mode), GenerateOptions{
		Temperature:     e.temperature,
		MaxOutputTokens: chatTokenLimit(mode),
	})
}

// Reselect drops the cached model so the next call picks a different one.
func (e *Explainer) Reselect() {
	e.models.Reselect()
}

// Model reports the model the next call will use.
func (e *Explainer) Model(ctx context.Context) string {
	return e.models.Model(ctx)
}

func (e *Explainer) generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if e.backend == nil {
		return "", ErrNotConfigured
	}
	model := e.models.Model(ctx)
	text, err := e.backend.Generate(ctx, model, prompt, opts)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			e.logger.Warn("quota exceeded, reselecting model", zap.String("model", model))
			e.models.Reselect()
		}
		return "", fmt.Errorf("generate with %s: %w", model, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
