package cli

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/gsarma/codemate/internal/alert"
	"github.com/gsarma/codemate/internal/config"
	"github.com/gsarma/codemate/internal/diagnose"
	"github.com/gsarma/codemate/internal/explain"
	"github.com/gsarma/codemate/internal/pipeline"
	"github.com/gsarma/codemate/internal/toolchain"
	"github.com/gsarma/codemate/internal/worker"
)

// components is the wired object graph behind every command.
type components struct {
	pool         *worker.Pool
	orchestrator *pipeline.Orchestrator
	meter        *alert.Meter
	speaker      *alert.Speaker
	mode         diagnose.Mode
}

// buildComponents wires the pipeline from cfg. Hardware and speech sinks are
// only attached when withAlerts is set and the section is enabled.
func buildComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, withAlerts bool) (*components, error) {
	mode, err := diagnose.ParseMode(cfg.Severity.DefaultMode, diagnose.ModePro)
	if err != nil {
		return nil, err
	}

	var backend explain.Backend
	gemini, err := explain.NewGemini(ctx, cfg.LLM, logger)
	switch {
	case err == nil:
		backend = gemini
	case errors.Is(err, explain.ErrNotConfigured):
		logger.Warn("no LLM API key configured; explanations and autofix are disabled")
	default:
		return nil, err
	}

	c := &components{
		pool:  worker.New(cfg.Worker.Concurrency, cfg.Worker.QueueSize, logger),
		meter: alert.NewMeter(cfg.Hardware, logger),
		mode:  mode,
	}

	sinks := []alert.Sink{alert.LogSink{Logger: logger.Named("alert")}}
	if withAlerts && cfg.Hardware.Enabled {
		sinks = append(sinks, c.meter)
	}
	if withAlerts && cfg.Speech.Enabled {
		c.speaker = alert.NewSpeaker(cfg.Speech, nil, logger)
		sinks = append(sinks, c.speaker)
	}

	c.orchestrator = pipeline.New(pipeline.Options{
		Toolchain:   newToolchain(cfg.Toolchain, logger),
		Pool:        c.pool,
		Explainer:   explain.New(backend, cfg.LLM, logger),
		Alerts:      alert.NewFanout(logger, sinks...),
		DefaultMode: mode,
		Logger:      logger,
	})
	return c, nil
}

// startPool runs the pool until the returned stop function is called.
func (c *components) startPool(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		c.pool.Start(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Close releases the serial port and waits for speech to end.
func (c *components) Close() {
	if c.speaker != nil {
		c.speaker.Close()
	}
	_ = c.meter.Close()
}

func newToolchain(cfg config.ToolchainConfig, logger *zap.Logger) toolchain.Toolchain {
	if cfg.Backend == "judge0" {
		return toolchain.NewJudge0(cfg, logger)
	}
	return toolchain.NewInvoker(cfg, nil, logger)
}
