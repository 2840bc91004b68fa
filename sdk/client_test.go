package codemate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", WithHTTPClient(srv.Client()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCompile(t *testing.T) {
	var got CompileRequest
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/compile" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "failed",
			"raw_error": "prog.c:3:1: error: expected ';'",
			"classification": map[string]any{
				"error_type":       "Syntax Error",
				"error_count":      1,
				"severity_percent": 83,
				"severity_label":   "Critical",
				"compile_time_ms":  12.5,
			},
			"needs_input": false,
		})
	})

	res, err := c.Compile(context.Background(), CompileRequest{Code: "int main(){}", Mode: ModePro})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got.Code != "int main(){}" || got.Mode != ModePro {
		t.Errorf("request body = %+v", got)
	}
	if res.Status != StatusFailed {
		t.Errorf("Status = %q", res.Status)
	}
	if res.Classification.SeverityPercent != 83 || res.Classification.ErrorType != "Syntax Error" {
		t.Errorf("Classification = %+v", res.Classification)
	}
	if res.ProgramOutput != nil {
		t.Errorf("ProgramOutput = %q, want nil", *res.ProgramOutput)
	}
}

func TestCompile_ToolErrorIsNotAnError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":    "tool_error",
			"raw_error": "Compiler error: gcc not found",
		})
	})

	res, err := c.Compile(context.Background(), CompileRequest{Code: "x"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Status != StatusToolError {
		t.Errorf("Status = %q", res.Status)
	}
}

func TestRun_CompileFailure(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "failed", "stderr": "boom"})
	})

	res, err := c.Run(context.Background(), RunRequest{Code: "x"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusFailed || res.Stderr != "boom" {
		t.Errorf("Run = %+v", res)
	}
}

func TestRun_TimeoutIsAPIError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "failed", "error": "Program execution timed out"})
	})

	_, err := c.Run(context.Background(), RunRequest{Code: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "Program execution timed out" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestExplain(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["errors"] != "bad" {
			t.Errorf("errors = %v", body["errors"])
		}
		if _, ok := body["classification"]; ok {
			t.Error("classification sent although unset")
		}
		writeJSON(w, http.StatusOK, map[string]string{"explanation": "EXPLANATION: missing semicolon"})
	})

	got, err := c.Explain(context.Background(), ExplainRequest{Errors: "bad"})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if got != "EXPLANATION: missing semicolon" {
		t.Errorf("Explain = %q", got)
	}
}

func TestAutofix_Unavailable(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":       "Autofix content not available",
			"explanation": "EXPLANATION: no block",
		})
	})

	_, err := c.Autofix(context.Background(), "int main(){")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Explanation != "EXPLANATION: no block" {
		t.Errorf("Explanation = %q", apiErr.Explanation)
	}
}

func TestChat_OmitsEmptyMode(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["mode"]; ok {
			t.Errorf("mode sent: %v", body["mode"])
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": "A pointer holds an address."})
	})

	got, err := c.Chat(context.Background(), "what is a pointer?", "")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "A pointer holds an address." {
		t.Errorf("Chat = %q", got)
	}
}

func TestHardware(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hardware/update":
			var body hardwareUpdateRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sent": body.Classification.SeverityPercent})
		case "/hardware/status":
			writeJSON(w, http.StatusOK, map[string]any{"connected": true, "port": "/dev/ttyACM0"})
		default:
			http.NotFound(w, r)
		}
	})

	upd, err := c.HardwareUpdate(context.Background(), 42)
	if err != nil {
		t.Fatalf("HardwareUpdate: %v", err)
	}
	if !upd.OK || upd.Sent != 42 {
		t.Errorf("HardwareUpdate = %+v", upd)
	}

	st, err := c.HardwareStatus(context.Background())
	if err != nil {
		t.Fatalf("HardwareStatus: %v", err)
	}
	if !st.Connected || st.Port != "/dev/ttyACM0" {
		t.Errorf("HardwareStatus = %+v", st)
	}
}

func TestRequestIDHeader(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "req-1" {
			t.Errorf("X-Request-ID = %q", id)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	c = New(c.baseURL, WithHTTPClient(c.httpClient), WithRequestID("req-1"))

	if err := c.ReselectModel(context.Background()); err != nil {
		t.Fatalf("ReselectModel: %v", err)
	}
}

func TestParseError_FallsBackToStatusText(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if want := "codemate: HTTP 502: Bad Gateway"; apiErr.Error() != want {
		t.Errorf("Error() = %q, want %q", apiErr.Error(), want)
	}
}
