package toolchain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gsarma/codemate/internal/config"
)

// Judge0 status IDs this backend distinguishes.
const (
	judge0Accepted         = 3
	judge0TimeLimit        = 5
	judge0CompilationError = 6
	judge0InternalError    = 13
	judge0ExecFormatError  = 14
)

// Judge0 compiles and runs jobs on a Judge0 CE sandbox instead of the local
// machine. The wall-clock budgets match the local Invoker.
type Judge0 struct {
	url        string
	authToken  string
	languageID int
	flags      []string
	runTimeout time.Duration
	interTime  time.Duration
	client     *http.Client
	logger     *zap.Logger
}

var _ Toolchain = (*Judge0)(nil)

// NewJudge0 builds a Judge0 backend from toolchain settings.
func NewJudge0(cfg config.ToolchainConfig, logger *zap.Logger) *Judge0 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Judge0{
		url:        strings.TrimRight(cfg.Judge0URL, "/"),
		authToken:  cfg.Judge0AuthToken,
		languageID: cfg.Judge0LanguageID,
		flags:      cfg.Flags,
		runTimeout: cfg.RunTimeout,
		interTime:  cfg.InteractiveRunTimeout,
		client:     &http.Client{Timeout: cfg.CompileTimeout + cfg.InteractiveRunTimeout + 10*time.Second},
		logger:     logger.Named("judge0"),
	}
}

type judge0Response struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// Compile submits the job synchronously and maps the verdict to an Outcome.
// Source and stdin travel base64-encoded both ways.
func (j *Judge0) Compile(ctx context.Context, job Job) Outcome {
	budget, input := j.runTimeout, ""
	if job.Stdin != nil {
		budget, input = j.interTime, *job.Stdin
	}

	reqBody := map[string]any{
		"source_code":      base64.StdEncoding.EncodeToString([]byte(job.Source)),
		"language_id":      j.languageID,
		"compiler_options": strings.Join(j.flags, " "),
		"wall_time_limit":  budget.Seconds(),
		"stdin":            base64.StdEncoding.EncodeToString([]byte(input)),
	}
	bodyJSON, err := json.Marshal(reqBody)
	if err != nil {
		return toolError(fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		j.url+"/submissions?base64_encoded=true&wait=true", bytes.NewReader(bodyJSON))
	if err != nil {
		return toolError(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if j.authToken != "" {
		req.Header.Set("X-Auth-Token", j.authToken)
	}

	start := time.Now()
	resp, err := j.client.Do(req)
	if err != nil {
		j.logger.Error("judge0 request failed", zap.Error(err))
		return toolError(fmt.Sprintf("submit to judge0: %v", err))
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode >= 400 {
		return toolError(fmt.Sprintf("judge0 returned HTTP %d", resp.StatusCode))
	}

	var raw judge0Response
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return toolError(fmt.Sprintf("decode judge0 response: %v", err))
	}
	return j.outcome(raw, job.SkipExecution, elapsed)
}

func (j *Judge0) outcome(raw judge0Response, skip bool, elapsed time.Duration) Outcome {
	out := Outcome{CompileTimeMillis: millis(elapsed)}
	switch raw.Status.ID {
	case judge0CompilationError:
		out.Status = StatusFailed
		out.RawDiagnostic = decode64(raw.CompileOutput)
		if out.RawDiagnostic == "" {
			out.RawDiagnostic = decode64(raw.Stdout)
		}
		return out
	case judge0InternalError, judge0ExecFormatError:
		msg := decode64(raw.Message)
		if msg == "" {
			msg = raw.Status.Description
		}
		return toolError(msg)
	}

	out.Status = StatusSuccess
	switch {
	case skip:
		out.ProgramOutput = DeferredOutput
		out.Deferred = true
	case raw.Status.ID == judge0TimeLimit:
		out.ProgramOutput = TimeoutOutput
		out.TimedOut = true
	default:
		out.ProgramOutput = CombineOutput(decode64(raw.Stdout), decode64(raw.Stderr))
	}
	return out
}

func decode64(s *string) string {
	if s == nil {
		return ""
	}
	dec, err := base64.StdEncoding.DecodeString(*s)
	if err != nil {
		return *s
	}
	return string(dec)
}
