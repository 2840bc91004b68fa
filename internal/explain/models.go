package explain

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const generateAction = "generateContent"

// ModelLister enumerates the models the service offers.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ModelSelector picks and caches the model used for generation. A pinned
// model bypasses discovery entirely.
type ModelSelector struct {
	lister    ModelLister
	pinned    string
	fallbacks []string
	logger    *zap.Logger

	mu        sync.Mutex
	current   string
	exhausted map[string]bool
}

// NewModelSelector returns a selector. lister may be nil, in which case the
// first usable fallback is chosen.
func NewModelSelector(lister ModelLister, pinned string, fallbacks []string, logger *zap.Logger) *ModelSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelSelector{
		lister:    lister,
		pinned:    pinned,
		fallbacks: fallbacks,
		logger:    logger,
		exhausted: make(map[string]bool),
	}
}

// Model returns the cached selection, discovering one on first use.
func (s *ModelSelector) Model(ctx context.Context) string {
	if s.pinned != "" {
		return s.pinned
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != "" {
		return s.current
	}

	candidates := s.discover(ctx)
	candidates = append(candidates, s.fallbacks...)
	usable := slices.DeleteFunc(slices.Clone(candidates), func(name string) bool { return s.exhausted[name] })
	if len(usable) == 0 {
		// Every known model has hit its quota; start over.
		clear(s.exhausted)
		usable = candidates
	}
	if len(usable) == 0 {
		return ""
	}
	s.current = usable[0]
	s.logger.Info("model selected", zap.String("model", s.current), zap.Int("candidates", len(usable)))
	return s.current
}

// Reselect forgets the cached model and excludes it from the next selection.
func (s *ModelSelector) Reselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != "" {
		s.exhausted[s.current] = true
	}
	s.current = ""
}

// discover lists models that support generation, skipping experimental ones
// and ordering flash models first.
func (s *ModelSelector) discover(ctx context.Context) []string {
	if s.lister == nil {
		return nil
	}
	models, err := s.lister.ListModels(ctx)
	if err != nil {
		s.logger.Warn("failed to list models, using fallbacks", zap.Error(err))
		return nil
	}

	var flash, other []string
	for _, m := range models {
		if !slices.Contains(m.Actions, generateAction) {
			continue
		}
		name := strings.ToLower(m.Name)
		if strings.Contains(name, "exp") {
			continue
		}
		if strings.Contains(name, "flash") {
			flash = append(flash, m.Name)
		} else {
			other = append(other, m.Name)
		}
	}
	return append(flash, other...)
}
