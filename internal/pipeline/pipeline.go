// Package pipeline sequences the toolchain, the classifier, the severity
// engine and the patcher for the user-facing operations.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gsarma/codemate/internal/alert"
	"github.com/gsarma/codemate/internal/diagnose"
	"github.com/gsarma/codemate/internal/patch"
	"github.com/gsarma/codemate/internal/toolchain"
	"github.com/gsarma/codemate/internal/worker"
)

var (
	// ErrAutofixUnavailable means neither a rewrite nor a patch could be produced.
	ErrAutofixUnavailable = errors.New("autofix content not available")
	// ErrToolFault means the compiler or the program could not be started.
	ErrToolFault = errors.New("toolchain fault")
)

// UnavailableError carries the explanation obtained before autofix gave up.
type UnavailableError struct {
	Explanation string
	Cause       error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", ErrAutofixUnavailable, e.Cause)
	}
	return ErrAutofixUnavailable.Error()
}

func (e *UnavailableError) Is(target error) bool { return target == ErrAutofixUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Cause }

// Explainer is the text-generation collaborator.
type Explainer interface {
	Explain(ctx context.Context, raw string, c diagnose.Classification) (string, error)
	FullFix(ctx context.Context, source, raw string) (string, error)
	Answer(ctx context.Context, question string, mode diagnose.Mode) (string, error)
	Reselect()
}

// CompileRequest is one submission.
type CompileRequest struct {
	Source string
	// Stdin is nil when the caller supplied no input.
	Stdin *string
	Mode  diagnose.Mode
}

// Result is the verdict for one submission. Classification is Clean and
// Severity is zero unless the compile failed.
type Result struct {
	toolchain.Outcome
	Classification diagnose.Classification
	Severity       diagnose.Report
	NeedsInput     bool
}

// AutofixResult is a corrected program.
type AutofixResult struct {
	FixedCode string
	// Diff is the AUTO-FIX block that was applied, empty for full rewrites.
	Diff string
	Note string
}

// Notes attached to autofix results.
const (
	NoteNoErrors    = "No errors found"
	NoteFullRewrite = "Full corrected code provided"
	NotePatched     = "Patched from AUTO-FIX block"
)

// Options wires an Orchestrator.
type Options struct {
	Toolchain toolchain.Toolchain
	// Pool must be started before the Orchestrator is used.
	Pool        *worker.Pool
	Explainer   Explainer
	Patcher     patch.Patcher
	Alerts      alert.Sink
	DefaultMode diagnose.Mode
	Logger      *zap.Logger
}

// Orchestrator runs the pipeline. It holds no per-request state.
type Orchestrator struct {
	toolchain   toolchain.Toolchain
	pool        *worker.Pool
	explainer   Explainer
	patcher     patch.Patcher
	alerts      alert.Sink
	defaultMode diagnose.Mode
	logger      *zap.Logger
}

// New returns an Orchestrator. Missing optional collaborators get defaults.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		toolchain:   opts.Toolchain,
		pool:        opts.Pool,
		explainer:   opts.Explainer,
		patcher:     opts.Patcher,
		alerts:      opts.Alerts,
		defaultMode: opts.DefaultMode,
		logger:      opts.Logger,
	}
	if o.patcher == nil {
		o.patcher = patch.LinePatcher{}
	}
	if o.alerts == nil {
		o.alerts = alert.NewFanout(nil)
	}
	if o.defaultMode == "" {
		o.defaultMode = diagnose.ModePro
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("pipeline")
	return o
}

// CompileAndRun compiles the source and runs it unless it looks like it
// needs interactive input.
func (o *Orchestrator) CompileAndRun(ctx context.Context, req CompileRequest) Result {
	needsInput := toolchain.NeedsInput(req.Source)
	res := o.compile(ctx, toolchain.Job{Source: req.Source, SkipExecution: needsInput, Stdin: req.Stdin}, req.Mode)
	res.NeedsInput = needsInput
	o.notify(ctx, res)
	return res
}

// Run compiles the source and always executes it with the supplied input,
// under the interactive budget.
func (o *Orchestrator) Run(ctx context.Context, req CompileRequest) Result {
	stdin := req.Stdin
	if stdin == nil {
		empty := ""
		stdin = &empty
	}
	return o.compile(ctx, toolchain.Job{Source: req.Source, Stdin: stdin}, req.Mode)
}

// Autofix returns a corrected version of source. A full rewrite from the
// explainer is preferred; the AUTO-FIX block of an explanation is patched in
// otherwise.
func (o *Orchestrator) Autofix(ctx context.Context, source string) (AutofixResult, error) {
	res := o.compile(ctx, toolchain.Job{Source: source}, o.defaultMode)
	switch res.Status {
	case toolchain.StatusSuccess:
		return AutofixResult{FixedCode: source, Note: NoteNoErrors}, nil
	case toolchain.StatusToolError:
		return AutofixResult{}, fmt.Errorf("%w: %s", ErrToolFault, res.RawDiagnostic)
	}

	if o.explainer == nil {
		return AutofixResult{}, &UnavailableError{}
	}

	fixed, err := o.explainer.FullFix(ctx, source, res.RawDiagnostic)
	if err == nil && fixed != "" {
		return AutofixResult{FixedCode: fixed, Note: NoteFullRewrite}, nil
	}
	if err != nil {
		o.logger.Warn("full rewrite unavailable, falling back to patch", zap.Error(err))
	}

	explanation, err := o.explainer.Explain(ctx, res.RawDiagnostic, res.Classification)
	if err != nil {
		return AutofixResult{}, &UnavailableError{Cause: err}
	}
	block, ok := patch.ExtractAutofixBlock(explanation)
	if !ok {
		return AutofixResult{}, &UnavailableError{Explanation: explanation}
	}
	patched, ok := o.patcher.Apply(source, block)
	if !ok {
		return AutofixResult{}, &UnavailableError{Explanation: explanation}
	}
	return AutofixResult{FixedCode: patched, Diff: block, Note: NotePatched}, nil
}

// Explain returns the three-section explanation of a diagnostic.
func (o *Orchestrator) Explain(ctx context.Context, raw string, c diagnose.Classification) (string, error) {
	if o.explainer == nil {
		return "", &UnavailableError{}
	}
	return o.explainer.Explain(ctx, raw, c)
}

// Answer replies to a programming question and reads the reply aloud.
func (o *Orchestrator) Answer(ctx context.Context, question string, mode diagnose.Mode) (string, error) {
	if o.explainer == nil {
		return "", &UnavailableError{}
	}
	if mode == "" {
		mode = diagnose.ModeStudent
	}
	reply, err := o.explainer.Answer(ctx, question, mode)
	if err != nil {
		return "", err
	}
	_ = o.alerts.Notify(ctx, alert.Alert{Kind: alert.KindChat, Message: reply})
	return reply, nil
}

// Reselect invalidates the explainer's cached model choice.
func (o *Orchestrator) Reselect() {
	if o.explainer != nil {
		o.explainer.Reselect()
	}
}

// compile runs job on the worker pool and derives the verdict.
func (o *Orchestrator) compile(ctx context.Context, job toolchain.Job, mode diagnose.Mode) Result {
	if mode == "" {
		mode = o.defaultMode
	}

	out, err := worker.Do(ctx, o.pool, func(ctx context.Context) toolchain.Outcome {
		return o.toolchain.Compile(ctx, job)
	})
	if err != nil {
		out = toolchain.Outcome{Status: toolchain.StatusToolError, RawDiagnostic: fmt.Sprintf("Compiler error: %v", err)}
	}

	res := Result{Outcome: out, Classification: diagnose.Clean}
	if out.Status == toolchain.StatusFailed {
		res.Classification = diagnose.Classify(out.RawDiagnostic)
	}
	res.Severity = diagnose.ScoreClassification(res.Classification, mode)

	o.logger.Info("compile finished",
		zap.String("status", string(out.Status)),
		zap.String("error_type", string(res.Classification.ErrorType)),
		zap.Int("severity_percent", res.Severity.Percent),
		zap.Float64("compile_time_ms", out.CompileTimeMillis),
		zap.Bool("skip_execution", job.SkipExecution),
	)
	return res
}

func (o *Orchestrator) notify(ctx context.Context, res Result) {
	var a alert.Alert
	switch res.Status {
	case toolchain.StatusSuccess:
		a = alert.Alert{Kind: alert.KindCompile, ErrorType: string(diagnose.NoError), Message: "Your code compiled successfully!"}
	case toolchain.StatusFailed:
		a = alert.Alert{
			Kind:      alert.KindCompile,
			ErrorType: string(res.Classification.ErrorType),
			Percent:   res.Severity.Percent,
			Message: fmt.Sprintf("Found %d errors and %d warnings.",
				res.Classification.ErrorCount, res.Classification.WarningCount),
		}
	default:
		return
	}
	// Sinks log their own failures.
	_ = o.alerts.Notify(ctx, a)
}
