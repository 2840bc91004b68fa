package explain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/gsarma/codemate/internal/config"
)

// Gemini is a Backend for the Gemini API.
type Gemini struct {
	client     *genai.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger
}

var _ Backend = (*Gemini)(nil)

// NewGemini creates a Gemini backend. A missing API key yields ErrNotConfigured.
func NewGemini(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &Gemini{
		client:     client,
		limiter:    rate.NewLimiter(limit, 1),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		logger:     logger.Named("gemini"),
	}, nil
}

// Generate sends one prompt, retrying transient server failures.
func (g *Gemini) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if opts.MaxOutputTokens > 0 {
		genCfg.MaxOutputTokens = opts.MaxOutputTokens
	}

	var text string
	operation := func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx, cancel := g.callContext(ctx)
		defer cancel()

		start := time.Now()
		resp, err := g.client.Models.GenerateContent(callCtx, model, genai.Text(prompt), genCfg)
		if err != nil {
			g.logger.Warn("generation failed", zap.String("model", model), zap.Error(err))
			mapped, retryable := mapError(err)
			if !retryable {
				return backoff.Permanent(mapped)
			}
			return mapped
		}
		text = resp.Text()
		g.logger.Debug("generation complete",
			zap.String("model", model),
			zap.Duration("duration", time.Since(start)),
			zap.Int("chars", len(text)),
		)
		return nil
	}

	b := backoff.WithContext(g.newBackOff(), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return "", err
	}
	return text, nil
}

// ListModels returns every model visible to the API key.
func (g *Gemini) ListModels(ctx context.Context) ([]ModelInfo, error) {
	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	var models []ModelInfo
	for m, err := range g.client.Models.All(callCtx) {
		if err != nil {
			mapped, _ := mapError(err)
			return nil, fmt.Errorf("list models: %w", mapped)
		}
		models = append(models, ModelInfo{Name: m.Name, Actions: m.SupportedActions})
	}
	return models, nil
}

func (g *Gemini) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gemini) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = time.Minute
	if g.maxRetries <= 0 {
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(b, uint64(g.maxRetries))
}

// mapError maps service errors onto the package sentinels and reports
// whether the failure is worth retrying. Only server side failures are.
func mapError(err error) (error, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return err, false
		}
		apiErr = *ptr
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Message), false
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden ||
		strings.Contains(strings.ToLower(apiErr.Message), "api key"):
		return fmt.Errorf("%w: %s", ErrNotConfigured, apiErr.Message), false
	case apiErr.Code >= http.StatusInternalServerError:
		return err, true
	default:
		return err, false
	}
}
