package toolchain

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gsarma/codemate/internal/config"
)

// Invoker drives a local compiler through a Runner.
type Invoker struct {
	cfg    config.ToolchainConfig
	runner Runner
	logger *zap.Logger
}

var _ Toolchain = (*Invoker)(nil)

// NewInvoker returns an Invoker. A nil runner runs real subprocesses.
func NewInvoker(cfg config.ToolchainConfig, runner Runner, logger *zap.Logger) *Invoker {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{cfg: cfg, runner: runner, logger: logger.Named("toolchain")}
}

// Compile writes job.Source to a fresh scratch file and invokes the
// toolchain on it. Scratch files are removed afterwards unless the
// configuration keeps them.
func (i *Invoker) Compile(ctx context.Context, job Job) Outcome {
	ws, err := NewWorkspace(i.cfg.ScratchDir, job.Source)
	if err != nil {
		return toolError(err.Error())
	}
	if !i.cfg.KeepArtifacts {
		defer func() {
			if err := ws.Remove(); err != nil {
				i.logger.Warn("failed to remove scratch files", zap.String("source", ws.SourcePath), zap.Error(err))
			}
		}()
	}
	return i.Invoke(ctx, ws.SourcePath, ws.BinaryPath, job.SkipExecution, job.Stdin)
}

// Invoke compiles sourcePath into binaryPath and, unless skipExecution is
// set, runs the binary with stdin. A nil stdin means no input was supplied
// and selects the shorter run budget.
func (i *Invoker) Invoke(ctx context.Context, sourcePath, binaryPath string, skipExecution bool, stdin *string) Outcome {
	args := make([]string, 0, len(i.cfg.Flags)+3)
	args = append(args, i.cfg.Flags...)
	args = append(args, sourcePath, "-o", binaryPath)

	compiled, err := i.runner.Run(ctx, Command{
		Path:    i.cfg.Compiler,
		Args:    args,
		Dir:     filepath.Dir(sourcePath),
		Timeout: i.cfg.CompileTimeout,
	})
	if err != nil {
		i.logger.Error("compiler could not be started", zap.String("compiler", i.cfg.Compiler), zap.Error(err))
		return toolError(fmt.Sprintf("Compiler error: %v", err))
	}
	if compiled.TimedOut {
		return toolError(fmt.Sprintf("Compiler error: compilation exceeded %s", i.cfg.CompileTimeout))
	}

	out := Outcome{CompileTimeMillis: millis(compiled.Elapsed)}
	if compiled.ExitCode != 0 {
		out.Status = StatusFailed
		out.RawDiagnostic = compiled.Stderr
		if out.RawDiagnostic == "" {
			out.RawDiagnostic = compiled.Stdout
		}
		return out
	}

	out.Status = StatusSuccess
	if skipExecution {
		out.ProgramOutput = DeferredOutput
		out.Deferred = true
		return out
	}

	timeout, input := i.cfg.RunTimeout, ""
	if stdin != nil {
		timeout, input = i.cfg.InteractiveRunTimeout, *stdin
	}
	ran, err := i.runner.Run(ctx, Command{
		Path:    binaryPath,
		Dir:     filepath.Dir(binaryPath),
		Stdin:   input,
		Timeout: timeout,
	})
	if err != nil {
		i.logger.Error("program could not be started", zap.String("binary", binaryPath), zap.Error(err))
		fault := toolError(fmt.Sprintf("Error running program: %v", err))
		fault.CompileTimeMillis = out.CompileTimeMillis
		return fault
	}
	if ran.TimedOut {
		out.ProgramOutput = TimeoutOutput
		out.TimedOut = true
		return out
	}

	out.ExitCode = ran.ExitCode
	out.ProgramOutput = CombineOutput(ran.Stdout, ran.Stderr)
	if ran.Truncated {
		out.ProgramOutput += "\n" + TruncatedMarker
		out.Truncated = true
	}
	return out
}

// CombineOutput joins trimmed stdout and stderr, stderr last, substituting
// NoOutput when both are empty.
func CombineOutput(stdout, stderr string) string {
	stdout, stderr = strings.TrimSpace(stdout), strings.TrimSpace(stderr)
	var combined string
	switch {
	case stdout != "" && stderr != "":
		combined = stdout + "\n" + stderr
	case stdout != "":
		combined = stdout
	default:
		combined = stderr
	}
	if combined == "" {
		return NoOutput
	}
	return combined
}

func toolError(msg string) Outcome {
	return Outcome{Status: StatusToolError, RawDiagnostic: msg}
}

// millis converts d to milliseconds rounded to two decimals.
func millis(d time.Duration) float64 {
	return math.Round(float64(d.Microseconds())/10) / 100
}
