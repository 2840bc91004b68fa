package alert

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gsarma/codemate/internal/config"
	"github.com/gsarma/codemate/internal/toolchain"
)

const (
	defaultRate   = 170
	speechTimeout = time.Minute
	silentText    = "I have nothing to say."
)

// Speaking rate in words per minute, keyed by error type or alert kind.
var speechRates = map[string]int{
	"Syntax Error":           150,
	"Undeclared Variable":    175,
	"Uninitialized Variable": 150,
	"Type Error":             160,
	"No Error":               185,
	string(KindChat):         185,
}

var (
	codeBlockRe  = regexp.MustCompile("(?s)```.*?```")
	markdownRe   = regexp.MustCompile("[`*#]")
	whitespaceRe = regexp.MustCompile(`\s{2,}`)
	sentenceRe   = regexp.MustCompile(`[.!?]`)
)

// Speaker reads alerts aloud through an external synthesizer. A new alert
// interrupts the one being spoken.
type Speaker struct {
	cfg    config.SpeechConfig
	runner toolchain.Runner
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Sink = (*Speaker)(nil)

// NewSpeaker returns a Speaker. A nil runner runs real subprocesses.
func NewSpeaker(cfg config.SpeechConfig, runner toolchain.Runner, logger *zap.Logger) *Speaker {
	if runner == nil {
		runner = toolchain.ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Speaker{cfg: cfg, runner: runner, logger: logger.Named("speech")}
}

// Notify starts speaking a summary of the alert and returns without waiting.
func (s *Speaker) Notify(ctx context.Context, a Alert) error {
	text := Summarize(CleanText(a.Message))
	if text == "" {
		text = silentText
	}

	key := a.ErrorType
	if a.Kind == KindChat {
		key = string(KindChat)
	}
	cmd := toolchain.Command{
		Path:    s.cfg.Command,
		Args:    []string{"-v", voiceName(s.cfg.Voice), "-s", strconv.Itoa(SpeechRate(key)), "--", text},
		Timeout: speechTimeout,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	speakCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		res, err := s.runner.Run(speakCtx, cmd)
		switch {
		case speakCtx.Err() != nil:
			s.logger.Debug("speech interrupted")
		case err != nil:
			s.logger.Warn("speech synthesizer failed", zap.String("command", cmd.Path), zap.Error(err))
		case res.ExitCode != 0:
			s.logger.Warn("speech synthesizer exited", zap.Int("exit_code", res.ExitCode), zap.String("stderr", res.Stderr))
		}
	}()
	return nil
}

// Stop interrupts the current utterance, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close stops speaking and waits for the synthesizer to exit.
func (s *Speaker) Close() {
	s.Stop()
	s.wg.Wait()
}

// SpeechRate returns the words-per-minute rate for an error type or kind.
func SpeechRate(key string) int {
	if r, ok := speechRates[key]; ok {
		return r
	}
	return defaultRate
}

// CleanText removes code blocks and markdown so the synthesizer does not
// read punctuation aloud.
func CleanText(text string) string {
	text = codeBlockRe.ReplaceAllString(text, "")
	text = markdownRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Summarize keeps the first two sentences of text.
func Summarize(text string) string {
	var sentences []string
	for _, s := range sentenceRe.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) <= 2 {
		return text
	}
	return strings.Join(sentences[:2], ". ") + "."
}

func voiceName(v string) string {
	switch strings.ToLower(v) {
	case "", "female":
		return "en+f3"
	case "male":
		return "en+m3"
	default:
		return v
	}
}
