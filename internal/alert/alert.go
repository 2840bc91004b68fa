// Package alert delivers compile verdicts to the speech and hardware
// collaborators. Delivery is best effort.
package alert

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Kind tells sinks what produced an alert.
type Kind string

const (
	KindCompile Kind = "compile"
	KindChat    Kind = "chat"
)

// Alert is one notification. Percent is only meaningful for compile alerts.
type Alert struct {
	Kind      Kind
	ErrorType string
	Percent   int
	Message   string
}

// Sink receives alerts.
type Sink interface {
	Notify(ctx context.Context, a Alert) error
}

// Fanout forwards every alert to all of its sinks concurrently.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

var _ Sink = (*Fanout)(nil)

// NewFanout returns a Fanout over sinks. Nil sinks are skipped.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{logger: logger.Named("alert")}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Notify waits for every sink and returns the first failure. Each failure is
// logged on its own.
func (f *Fanout) Notify(ctx context.Context, a Alert) error {
	var g errgroup.Group
	for _, s := range f.sinks {
		g.Go(func() error {
			if err := s.Notify(ctx, a); err != nil {
				f.logger.Warn("alert sink failed",
					zap.String("kind", string(a.Kind)),
					zap.String("sink", sinkName(s)),
					zap.Error(err),
				)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func sinkName(s Sink) string {
	switch s.(type) {
	case *Meter:
		return "serial"
	case *Speaker:
		return "speech"
	case LogSink:
		return "log"
	default:
		return "custom"
	}
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	Logger *zap.Logger
}

// Notify logs a.
func (l LogSink) Notify(_ context.Context, a Alert) error {
	if l.Logger == nil {
		return nil
	}
	l.Logger.Info("alert",
		zap.String("kind", string(a.Kind)),
		zap.String("error_type", a.ErrorType),
		zap.Int("percent", a.Percent),
		zap.String("message", a.Message),
	)
	return nil
}
