package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func jsonLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := &Config{Level: level, Format: "json", Output: "stderr"}
	return NewWithWriter(cfg, "kalikit-test", &buf), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line, got nothing")
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	cfg := &Config{Level: "invalid-level", Format: "json", Output: "stdout"}
	if l := New(cfg, "test"); l == nil {
		t.Fatal("expected logger to be created even with invalid level")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	if l := NewFromEnv("env-svc"); l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	l, buf := jsonLogger(t, "debug")
	l.WithComponent("process").Info("tool exited", Fields(FieldTool, "nm", FieldExitCode, 1))

	m := decodeLine(t, buf)
	if m["message"] != "tool exited" {
		t.Errorf("expected message 'tool exited', got %v", m["message"])
	}
	if m[FieldComponent] != "process" {
		t.Errorf("expected component=process, got %v", m[FieldComponent])
	}
	if m[FieldTool] != "nm" {
		t.Errorf("expected tool=nm, got %v", m[FieldTool])
	}
	if m["service"] != "kalikit-test" {
		t.Errorf("expected service=kalikit-test, got %v", m["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := jsonLogger(t, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug/info to be filtered, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithInvocationID(ctx, "inv-1")
	l.WithContext(ctx).Info("hello")

	m := decodeLine(t, buf)
	if m[FieldRequestID] != "req-1" {
		t.Errorf("expected request_id=req-1, got %v", m[FieldRequestID])
	}
	if m[FieldInvocationID] != "inv-1" {
		t.Errorf("expected invocation_id=inv-1, got %v", m[FieldInvocationID])
	}
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("expected RequestIDFromContext=req-1, got %q", got)
	}
	if got := InvocationIDFromContext(ctx); got != "inv-1" {
		t.Errorf("expected InvocationIDFromContext=inv-1, got %q", got)
	}
}

func TestWithError(t *testing.T) {
	l, buf := jsonLogger(t, "info")
	l.WithError(errors.New("boom")).Error("failed")
	m := decodeLine(t, buf)
	if m[FieldError] != "boom" {
		t.Errorf("expected error=boom, got %v", m[FieldError])
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Info("nothing", Fields("k", "v"))
	l.WithComponent("x").Error("still nothing")
}

func TestInitDoesNotMutateConfig(t *testing.T) {
	cfg := Config{Level: "info", Format: "json"}
	Init(&cfg)
	if cfg.Output != "" {
		t.Errorf("Init should not modify caller config, got output %q", cfg.Output)
	}
	if GetGlobalLogger() == nil {
		t.Fatal("expected global logger to be set after Init")
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
}

func TestRegistry(t *testing.T) {
	defer Reset()
	l, buf := jsonLogger(t, "info")
	Register("httpapi", l)
	Get("httpapi").Info("registered")
	if !strings.Contains(buf.String(), "registered") {
		t.Fatalf("expected registered logger to be returned, got %q", buf.String())
	}
	if Get("unregistered") == nil {
		t.Fatal("expected fallback logger for unregistered name")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %q", cfg.Output)
	}

	bad := Config{Level: "loud", Format: "json", Output: "stdout"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid level")
	}
	bad = Config{Level: "info", Format: "xml", Output: "stdout"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestFieldsHelpers(t *testing.T) {
	f := Fields("a", 1, "b")
	if len(f) != 1 || f["a"] != 1 {
		t.Errorf("expected odd trailing key to be dropped, got %v", f)
	}
	ef := ErrorFields("launch", errors.New("x"))
	if ef[FieldOperation] != "launch" || ef[FieldError] != "x" {
		t.Errorf("unexpected ErrorFields: %v", ef)
	}
	df := DurationFields("run", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("expected duration_ms=1500, got %v", df[FieldDuration])
	}
	merged := MergeWithError(nil, errors.New("y"))
	if merged[FieldError] != "y" {
		t.Errorf("unexpected MergeWithError: %v", merged)
	}
}

func TestConsoleFormatDoesNotPanic(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Level: "info", Format: "console", NoColor: true}
	NewWithWriter(cfg, "svc", &buf).Info("console line", Fields("k", "v"))
	if !strings.Contains(buf.String(), "[INF]") {
		t.Errorf("expected [INF] tag, got %q", buf.String())
	}
}
