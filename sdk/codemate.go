// Package codemate provides a Go client for the CodeMate API.
//
// CodeMate compiles C programs, classifies compiler diagnostics, and asks a
// generation service to explain and repair them.
//
// Usage:
//
//	client := codemate.New("http://localhost:5000")
//
//	res, err := client.Compile(ctx, codemate.CompileRequest{Code: src})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Classification.ErrorType, res.Classification.SeverityPercent)
package codemate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is the CodeMate API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRequestID tags every request with an X-Request-ID header so calls can
// be matched against the server access log.
func WithRequestID(id string) Option {
	return func(c *Client) {
		c.headers.Set("X-Request-ID", id)
	}
}

// New creates a CodeMate client.
// baseURL should be the root URL (e.g. "http://localhost:5000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		headers:    http.Header{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Health checks that the CodeMate server is reachable.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	return doRequest[HealthResponse](ctx, c, http.MethodGet, "/", nil, http.StatusOK)
}

// Compile compiles a program and runs it unless it reads from stdin.
// A toolchain fault is reported in the response with StatusToolError rather
// than as an error.
func (c *Client) Compile(ctx context.Context, req CompileRequest) (*CompileResponse, error) {
	return doRequest[CompileResponse](ctx, c, http.MethodPost, "/compile", req,
		http.StatusOK, http.StatusInternalServerError)
}

// Run compiles a program and executes it with the given stdin.
// Compile failures come back as a response with Status "failed" and the
// diagnostic in Stderr.
func (c *Client) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	return doRequest[RunResponse](ctx, c, http.MethodPost, "/run", req,
		http.StatusOK, http.StatusBadRequest)
}

// Explain asks for an explanation of a compiler diagnostic.
// The server classifies the diagnostic when req.Classification is empty.
func (c *Client) Explain(ctx context.Context, req ExplainRequest) (string, error) {
	out, err := doRequest[ExplainResponse](ctx, c, http.MethodPost, "/explain_error", req, http.StatusOK)
	if err != nil {
		return "", err
	}
	return out.Explanation, nil
}

// Autofix returns a corrected version of code.
// When no fix could be produced the *APIError carries the server's
// explanation.
func (c *Client) Autofix(ctx context.Context, code string) (*AutofixResponse, error) {
	body := struct {
		Code string `json:"code"`
	}{Code: code}
	return doRequest[AutofixResponse](ctx, c, http.MethodPost, "/autofix", body, http.StatusOK)
}

// Chat asks a programming question. mode is "student" or "pro"; empty
// means student.
func (c *Client) Chat(ctx context.Context, message string, mode Mode) (string, error) {
	body := struct {
		Message string `json:"message"`
		Mode    Mode   `json:"mode,omitempty"`
	}{Message: message, Mode: mode}
	out, err := doRequest[ChatResponse](ctx, c, http.MethodPost, "/chat", body, http.StatusOK)
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}

// ReselectModel makes the server pick a new generation model.
func (c *Client) ReselectModel(ctx context.Context) error {
	_, err := doRequest[StatusResponse](ctx, c, http.MethodPost, "/models/reselect", nil, http.StatusOK)
	return err
}

// HardwareUpdate pushes a severity percent (0..100) to the meter.
func (c *Client) HardwareUpdate(ctx context.Context, percent int) (*HardwareUpdateResponse, error) {
	body := hardwareUpdateRequest{}
	body.Classification.SeverityPercent = percent
	return doRequest[HardwareUpdateResponse](ctx, c, http.MethodPost, "/hardware/update", body, http.StatusOK)
}

// HardwareStatus reports whether the meter is connected.
func (c *Client) HardwareStatus(ctx context.Context) (*HardwareStatus, error) {
	return doRequest[HardwareStatus](ctx, c, http.MethodGet, "/hardware/status", nil, http.StatusOK)
}

// --- internal helpers ---

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("codemate: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func doRequest[T any](ctx context.Context, c *Client, method, path string, body any, expectedStatuses ...int) (*T, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	for _, s := range expectedStatuses {
		if resp.StatusCode == s {
			var out T
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return nil, fmt.Errorf("codemate: decode response: %w", err)
			}
			return &out, nil
		}
	}
	return nil, parseError(resp)
}

func parseError(resp *http.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error       string `json:"error"`
		Explanation string `json:"explanation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		e.Message = body.Error
		e.Explanation = body.Explanation
	} else {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
