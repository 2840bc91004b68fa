package codemate

// --- Shared ---

// Mode selects how verbose explanations are.
type Mode string

const (
	ModeStudent Mode = "student"
	ModePro     Mode = "pro"
)

// Status is the outcome of a compile.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusToolError Status = "tool_error"
)

type StatusResponse struct {
	Status string `json:"status"`
}

type HealthResponse struct {
	Message string `json:"message"`
}

// --- Compile ---

type CompileRequest struct {
	Code string `json:"code"`
	// Stdin, when set, is fed to the program even if it reads input.
	Stdin *string `json:"stdin,omitempty"`
	Mode  Mode    `json:"mode,omitempty"`
}

// Classification is the server's reading of a compiler diagnostic.
type Classification struct {
	ErrorType       string  `json:"error_type"`
	ErrorCount      int     `json:"error_count"`
	WarningCount    int     `json:"warning_count"`
	SeverityPercent int     `json:"severity_percent"`
	SeverityLabel   string  `json:"severity_label"`
	SeverityLevel   int     `json:"severity_level"`
	CompileTimeMS   float64 `json:"compile_time_ms"`
}

type CompileResponse struct {
	Status         Status         `json:"status"`
	RawError       string         `json:"raw_error"`
	Classification Classification `json:"classification"`
	NeedsInput     bool           `json:"needs_input"`
	// ProgramOutput is only set when the program compiled.
	ProgramOutput *string `json:"program_output,omitempty"`
	TimedOut      bool    `json:"timed_out,omitempty"`
}

// --- Run ---

type RunRequest struct {
	Code  string  `json:"code"`
	Stdin *string `json:"stdin,omitempty"`
}

type RunResponse struct {
	Status Status `json:"status"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// --- Explain / Autofix / Chat ---

type ExplainRequest struct {
	Errors         string          `json:"errors"`
	Classification *Classification `json:"classification,omitempty"`
}

type ExplainResponse struct {
	Explanation string `json:"explanation"`
}

type AutofixResponse struct {
	FixedCode string `json:"fixed_code"`
	Diff      string `json:"diff"`
	Note      string `json:"note"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

// --- Hardware ---

type hardwareUpdateRequest struct {
	Classification struct {
		SeverityPercent int `json:"severity_percent"`
	} `json:"classification"`
}

type HardwareUpdateResponse struct {
	OK   bool `json:"ok"`
	Sent int  `json:"sent"`
}

type HardwareStatus struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port"`
}
