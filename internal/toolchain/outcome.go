// Package toolchain compiles C source with the external compiler and runs
// the resulting binary under a wall-clock budget.
package toolchain

import "context"

// Status is the result class of one toolchain invocation.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusToolError Status = "tool_error"
)

// Messages substituted for program output.
const (
	DeferredOutput = "(Program requires input. Please provide input and run the program.)"
	NoOutput       = "(Program executed successfully with no output)"
	TimeoutOutput  = "(Program execution timed out. It may require input.)"
	// TruncatedMarker ends output that was cut at MaxOutputBytes.
	TruncatedMarker = "(output truncated)"
)

// Outcome is the result of compiling and optionally running one program.
// ProgramOutput is only set when Status is StatusSuccess.
type Outcome struct {
	Status            Status  `json:"status"`
	RawDiagnostic     string  `json:"raw_error"`
	ProgramOutput     string  `json:"program_output,omitempty"`
	CompileTimeMillis float64 `json:"compile_time_ms"`
	// Deferred is set when execution was skipped because input is needed.
	Deferred bool `json:"deferred,omitempty"`
	// TimedOut is set when the program was killed for exceeding its budget.
	TimedOut bool `json:"timed_out,omitempty"`
	// ExitCode is the program's exit status when it ran to completion.
	ExitCode int `json:"exit_code,omitempty"`
	// Truncated is set when program output exceeded MaxOutputBytes.
	Truncated bool `json:"truncated,omitempty"`
}

// Job is one compile-and-maybe-run request.
type Job struct {
	Source        string
	SkipExecution bool
	// Stdin is nil when the caller supplied no input.
	Stdin *string
}

// Toolchain compiles and runs a Job. Implementations never return an error;
// faults are reported as StatusToolError.
type Toolchain interface {
	Compile(ctx context.Context, job Job) Outcome
}
