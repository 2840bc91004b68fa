package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gsarma/codemate/internal/alert"
	"github.com/gsarma/codemate/internal/diagnose"
	"github.com/gsarma/codemate/internal/explain"
	"github.com/gsarma/codemate/internal/pipeline"
	"github.com/gsarma/codemate/internal/toolchain"
)

// Pipeline is the subset of the orchestrator the handlers drive.
type Pipeline interface {
	CompileAndRun(ctx context.Context, req pipeline.CompileRequest) pipeline.Result
	Run(ctx context.Context, req pipeline.CompileRequest) pipeline.Result
	Autofix(ctx context.Context, source string) (pipeline.AutofixResult, error)
	Explain(ctx context.Context, raw string, c diagnose.Classification) (string, error)
	Answer(ctx context.Context, question string, mode diagnose.Mode) (string, error)
	Reselect()
}

// Hardware is the severity meter.
type Hardware interface {
	Send(ctx context.Context, percent int) error
	Status() alert.Status
}

type Handler struct {
	pipeline    Pipeline
	hardware    Hardware
	defaultMode diagnose.Mode
	logger      *zap.Logger
}

// NewHandler returns the HTTP handlers.
func NewHandler(p Pipeline, hw Hardware, defaultMode diagnose.Mode, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pipeline: p, hardware: hw, defaultMode: defaultMode, logger: logger.Named("api")}
}

type classificationResponse struct {
	diagnose.Classification
	diagnose.Report
	CompileTimeMillis float64 `json:"compile_time_ms"`
}

type compileResponse struct {
	Status         toolchain.Status       `json:"status"`
	RawError       string                 `json:"raw_error"`
	Classification classificationResponse `json:"classification"`
	NeedsInput     bool                   `json:"needs_input"`
	ProgramOutput  *string                `json:"program_output,omitempty"`
	TimedOut       bool                   `json:"timed_out,omitempty"`
}

func newCompileResponse(res pipeline.Result) compileResponse {
	resp := compileResponse{
		Status:   res.Status,
		RawError: res.RawDiagnostic,
		Classification: classificationResponse{
			Classification:    res.Classification,
			Report:            res.Severity,
			CompileTimeMillis: res.CompileTimeMillis,
		},
		NeedsInput: res.NeedsInput,
		TimedOut:   res.TimedOut,
	}
	if res.Status == toolchain.StatusSuccess {
		out := res.ProgramOutput
		resp.ProgramOutput = &out
	}
	return resp
}

// Health reports that the server is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "CodeMate backend is running!"})
}

// Compile compiles the submitted program and runs it unless it reads input.
func (h *Handler) Compile(c *gin.Context) {
	var body struct {
		Code  string  `json:"code" binding:"required"`
		Stdin *string `json:"stdin"`
		Mode  string  `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No code provided"})
		return
	}
	mode, err := diagnose.ParseMode(body.Mode, h.defaultMode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.pipeline.CompileAndRun(c.Request.Context(), pipeline.CompileRequest{
		Source: body.Code,
		Stdin:  body.Stdin,
		Mode:   mode,
	})
	status := http.StatusOK
	if res.Status == toolchain.StatusToolError {
		status = http.StatusInternalServerError
	}
	c.JSON(status, newCompileResponse(res))
}

// Run compiles the program and executes it with the supplied stdin.
func (h *Handler) Run(c *gin.Context) {
	var body struct {
		Code  string  `json:"code" binding:"required"`
		Stdin *string `json:"stdin"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "error": "No code provided"})
		return
	}

	res := h.pipeline.Run(c.Request.Context(), pipeline.CompileRequest{Source: body.Code, Stdin: body.Stdin})
	switch {
	case res.Status == toolchain.StatusFailed:
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "stderr": res.RawDiagnostic})
	case res.Status == toolchain.StatusToolError:
		c.JSON(http.StatusInternalServerError, gin.H{"status": "failed", "error": res.RawDiagnostic})
	case res.TimedOut:
		c.JSON(http.StatusInternalServerError, gin.H{"status": "failed", "error": "Program execution timed out"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "success", "stdout": res.ProgramOutput, "stderr": ""})
	}
}

// ExplainError asks the generation service to explain a diagnostic.
func (h *Handler) ExplainError(c *gin.Context) {
	var body struct {
		Errors         string                  `json:"errors"`
		RawError       string                  `json:"raw_error"`
		Classification diagnose.Classification `json:"classification"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw := body.Errors
	if raw == "" {
		raw = body.RawError
	}
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No errors provided"})
		return
	}
	if body.Classification.ErrorType == "" {
		body.Classification = diagnose.Classify(raw)
	}

	explanation, err := h.pipeline.Explain(c.Request.Context(), raw, body.Classification)
	if err != nil {
		h.generationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": explanation})
}

// Autofix returns a corrected program.
func (h *Handler) Autofix(c *gin.Context) {
	var body struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No code provided"})
		return
	}

	res, err := h.pipeline.Autofix(c.Request.Context(), body.Code)
	var unavailable *pipeline.UnavailableError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"fixed_code": res.FixedCode, "diff": res.Diff, "note": res.Note})
	case errors.As(err, &unavailable) && isServiceFault(unavailable.Cause):
		h.generationError(c, unavailable.Cause)
	case errors.As(err, &unavailable):
		if unavailable.Cause != nil {
			h.logger.Warn("autofix unavailable", zap.Error(unavailable.Cause))
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Autofix content not available", "explanation": unavailable.Explanation})
	case errors.Is(err, pipeline.ErrToolFault):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		h.generationError(c, err)
	}
}

// Chat answers a programming question.
func (h *Handler) Chat(c *gin.Context) {
	var body struct {
		Message string `json:"message" binding:"required"`
		Mode    string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No message provided"})
		return
	}
	mode, err := diagnose.ParseMode(body.Mode, diagnose.ModeStudent)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.pipeline.Answer(c.Request.Context(), body.Message, mode)
	if err != nil {
		h.generationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// ReselectModel drops the cached model choice.
func (h *Handler) ReselectModel(c *gin.Context) {
	h.pipeline.Reselect()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HardwareUpdate pushes a severity percent to the meter.
func (h *Handler) HardwareUpdate(c *gin.Context) {
	var body struct {
		Classification struct {
			SeverityPercent int `json:"severity_percent"`
		} `json:"classification"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	percent := body.Classification.SeverityPercent
	if err := h.hardware.Send(c.Request.Context(), percent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "sent": percent})
}

// HardwareStatus reports the meter link.
func (h *Handler) HardwareStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.hardware.Status())
}

// isServiceFault reports whether err came from the generation service being
// unusable rather than from the model's reply.
func isServiceFault(err error) bool {
	return errors.Is(err, explain.ErrQuotaExceeded) || errors.Is(err, explain.ErrNotConfigured)
}

func (h *Handler) generationError(c *gin.Context, err error) {
	h.logger.Error("generation request failed", zap.Error(err))
	switch {
	case errors.Is(err, explain.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "API quota exceeded. Please wait a moment and try again. The system will automatically try a different model.",
		})
	case errors.Is(err, explain.ErrNotConfigured):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "API key error. Please check your GEMINI_API_KEY."})
	case errors.Is(err, pipeline.ErrAutofixUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "generation service unavailable"})
	case errors.Is(err, explain.ErrEmptyResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Empty response from model"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error: " + err.Error()})
	}
}
