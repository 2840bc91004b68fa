package explain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsarma/codemate/internal/config"
	"github.com/gsarma/codemate/internal/diagnose"
)

type stubBackend struct {
	GenerateFn   func(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error)
	ListModelsFn func(ctx context.Context) ([]ModelInfo, error)

	calls []GenerateOptions
	seen  []string
}

func (s *stubBackend) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	s.calls = append(s.calls, opts)
	s.seen = append(s.seen, model)
	if s.GenerateFn != nil {
		return s.GenerateFn(ctx, model, prompt, opts)
	}
	return "ok", nil
}

func (s *stubBackend) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if s.ListModelsFn != nil {
		return s.ListModelsFn(ctx)
	}
	return nil, errors.New("listing disabled")
}

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		FallbackModels: []string{"model-a", "model-b"},
		Temperature:    0.7,
	}
}

func TestExplain_PromptCarriesDiagnostic(t *testing.T) {
	var prompt string
	backend := &stubBackend{GenerateFn: func(_ context.Context, _, p string, _ GenerateOptions) (string, error) {
		prompt = p
		return "  EXPLANATION: x\nFIX: y\nAUTO-FIX CODE:\nint x = 0;\n  ", nil
	}}
	e := New(backend, testLLMConfig(), nil)

	c := diagnose.Classification{ErrorType: diagnose.UndeclaredVariable, ErrorCount: 2, WarningCount: 1}
	got, err := e.Explain(context.Background(), "main.c:3: error: 'x' undeclared", c)
	require.NoError(t, err)

	assert.Equal(t, "EXPLANATION: x\nFIX: y\nAUTO-FIX CODE:\nint x = 0;", got)
	assert.Contains(t, prompt, "main.c:3: error: 'x' undeclared")
	assert.Contains(t, prompt, "Error Type: Undeclared Variable")
	assert.Contains(t, prompt, "Errors: 2")
	assert.Contains(t, prompt, "Warnings: 1")
	assert.Contains(t, prompt, "AUTO-FIX CODE:")
	assert.Equal(t, []string{"model-a"}, backend.seen)
}

func TestFullFix_StripsFences(t *testing.T) {
	backend := &stubBackend{GenerateFn: func(context.Context, string, string, GenerateOptions) (string, error) {
		return "```c\nint main(void) { return 0; }\n```", nil
	}}
	e := New(backend, testLLMConfig(), nil)

	got, err := e.FullFix(context.Background(), "int main(void) { return 0 }", "error: expected ';'")
	require.NoError(t, err)
	assert.Equal(t, "int main(void) { return 0; }", got)
}

func TestFullFix_OnlyFences(t *testing.T) {
	backend := &stubBackend{GenerateFn: func(context.Context, string, string, GenerateOptions) (string, error) {
		return "```\n```", nil
	}}
	e := New(backend, testLLMConfig(), nil)

	_, err := e.FullFix(context.Background(), "src", "diag")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnswer_TokenLimitPerMode(t *testing.T) {
	backend := &stubBackend{}
	e := New(backend, testLLMConfig(), nil)

	_, err := e.Answer(context.Background(), "what is a pointer?", diagnose.ModeStudent)
	require.NoError(t, err)
	_, err = e.Answer(context.Background(), "what is a pointer?", diagnose.ModePro)
	require.NoError(t, err)

	require.Len(t, backend.calls, 2)
	assert.Equal(t, int32(250), backend.calls[0].MaxOutputTokens)
	assert.Equal(t, int32(180), backend.calls[1].MaxOutputTokens)
	assert.InDelta(t, 0.7, backend.calls[0].Temperature, 1e-6)
}

func TestGenerate_QuotaReselectsModel(t *testing.T) {
	backend := &stubBackend{GenerateFn: func(_ context.Context, model, _ string, _ GenerateOptions) (string, error) {
		if model == "model-a" {
			return "", fmt.Errorf("%w: daily limit", ErrQuotaExceeded)
		}
		return "answer", nil
	}}
	e := New(backend, testLLMConfig(), nil)

	_, err := e.Answer(context.Background(), "q", diagnose.ModePro)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	got, err := e.Answer(context.Background(), "q", diagnose.ModePro)
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
	assert.Equal(t, []string{"model-a", "model-b"}, backend.seen)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("no backend", func(t *testing.T) {
		e := New(nil, testLLMConfig(), nil)
		_, err := e.Explain(context.Background(), "diag", diagnose.Clean)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("blank reply", func(t *testing.T) {
		backend := &stubBackend{GenerateFn: func(context.Context, string, string, GenerateOptions) (string, error) {
			return " \n\t", nil
		}}
		e := New(backend, testLLMConfig(), nil)
		_, err := e.Answer(context.Background(), "q", diagnose.ModeStudent)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("backend failure is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		backend := &stubBackend{GenerateFn: func(context.Context, string, string, GenerateOptions) (string, error) {
			return "", boom
		}}
		e := New(backend, testLLMConfig(), nil)
		_, err := e.Answer(context.Background(), "q", diagnose.ModeStudent)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "model-a")
	})
}

func TestChatPrompt_Tone(t *testing.T) {
	assert.Contains(t, chatPrompt("why?", diagnose.ModeStudent), "Student mode")
	assert.Contains(t, chatPrompt("why?", diagnose.ModePro), "Pro mode")
	assert.Contains(t, chatPrompt("why?", diagnose.ModePro), `"why?"`)
}
