package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/kalikit/httpapi"
	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/process"
	"github.com/kbukum/kalikit/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeTools puts nm and tshark scripts running body first on PATH.
func fakeTools(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"nm", "tshark"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func newServer(t *testing.T, cfg httpapi.Config, opts ...tools.Option) *httpapi.Server {
	t.Helper()
	exec, err := process.New(process.Config{
		Isolation: process.IsolationConfig{Backend: process.BackendUnconfined, Enforcement: process.EnforcementPermissive},
	}, process.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	catalog := tools.NewCatalog(exec, append([]tools.Option{tools.WithLogger(logger.Nop())}, opts...)...)
	srv, err := httpapi.New(cfg, catalog, exec, httpapi.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv
}

func do(t *testing.T, srv *httpapi.Server, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Retryable bool           `json:"retryable"`
		Details   map[string]any `json:"details"`
	} `json:"error"`
	Result *process.Result `json:"result"`
}

type invocation struct {
	ID     string          `json:"invocation_id"`
	Action string          `json:"action"`
	Tool   string          `json:"tool"`
	State  string          `json:"state"`
	Result *process.Result `json:"result"`
	Error  *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// waitInvocation polls until the invocation reaches a terminal state.
func waitInvocation(t *testing.T, srv *httpapi.Server, id string) invocation {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec := do(t, srv, http.MethodGet, "/v1/invocations/"+id, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		inv := decode[envelope[invocation]](t, rec).Data
		if inv.Result != nil {
			return inv
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("invocation %s did not finish", id)
	return invocation{}
}
