package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/kalikit/errors"
)

func TestValidatorRequired(t *testing.T) {
	if New().Required("target", "/bin/ls").HasErrors() {
		t.Error("expected no errors for valid input")
	}
	if !New().Required("target", "").HasErrors() {
		t.Error("expected error for empty required field")
	}
	if !New().Required("target", "   ").HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorRequiredUUID(t *testing.T) {
	if v := New().RequiredUUID("id", uuid.New().String()); v.HasErrors() {
		t.Errorf("expected no errors for valid UUID, got %v", v.Errors())
	}
	for _, bad := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		if !New().RequiredUUID("id", bad).HasErrors() {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestValidatorArgument(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"/usr/bin/ls", true},
		{"capture.pcap", true},
		{"", false},
		{"-D", false},
		{"--help", false},
		{"a\x00b", false},
		{"line\nbreak", false},
	}
	for _, tc := range tests {
		got := !New().Argument("target", tc.value).HasErrors()
		if got != tc.ok {
			t.Errorf("Argument(%q): expected ok=%v, got %v", tc.value, tc.ok, got)
		}
	}
}

func TestValidatorRange(t *testing.T) {
	if New().Range("duration", 30, 1, 86400).HasErrors() {
		t.Error("expected 30 to be in range")
	}
	if !New().Range("duration", 0, 1, 86400).HasErrors() {
		t.Error("expected 0 to be out of range")
	}
	if !New().Range("duration", 86401, 1, 86400).HasErrors() {
		t.Error("expected 86401 to be out of range")
	}
}

func TestValidatorPattern(t *testing.T) {
	const iface = `^[A-Za-z0-9_.:-]+$`
	if New().Pattern("interface", "eth0", iface).HasErrors() {
		t.Error("expected eth0 to match")
	}
	if !New().Pattern("interface", "eth0; rm -rf /", iface).HasErrors() {
		t.Error("expected shell metacharacters to be rejected")
	}
	if New().Pattern("interface", "", iface).HasErrors() {
		t.Error("expected empty value to be skipped")
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"strict", "permissive"}
	if New().OneOf("enforcement", "strict", allowed).HasErrors() {
		t.Error("expected strict to be allowed")
	}
	if !New().OneOf("enforcement", "lenient", allowed).HasErrors() {
		t.Error("expected lenient to be rejected")
	}
}

func TestValidatorValidate(t *testing.T) {
	v := New().Argument("target", "").Custom(false, "duration", "must be positive")
	appErr := v.Validate()
	if appErr == nil {
		t.Fatal("expected AppError")
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected two field errors, got %v", appErr.Details["fields"])
	}
	if !strings.Contains(appErr.Message, "target: is required") {
		t.Errorf("expected message to name the field, got %q", appErr.Message)
	}
	if New().Validate() != nil {
		t.Error("expected nil for a clean validator")
	}
}

func TestValidatorChaining(t *testing.T) {
	v := New()
	result := v.Required("tool", "nm").MaxLength("tool", "nm", 255).Min("duration", 30, 1)
	if result != v {
		t.Error("expected chaining to return same validator")
	}
	if v.HasErrors() {
		t.Error("expected no errors for valid chained validation")
	}
}

type specLike struct {
	Tool        string        `json:"tool" validate:"required,argsafe"`
	MemoryLimit int64         `json:"memory_limit" validate:"gt=0"`
	Timeout     time.Duration `json:"timeout" validate:"gt=0"`
}

func TestStructValidateValid(t *testing.T) {
	if err := Validate(specLike{Tool: "nm", MemoryLimit: 1 << 30, Timeout: time.Minute}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	err := Validate(specLike{Tool: "", MemoryLimit: 0, Timeout: -time.Second})
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"tool: is required", "memory_limit: must be greater than 0", "timeout"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error to contain %q, got %q", want, msg)
		}
	}
}

func TestStructValidateArgsafe(t *testing.T) {
	err := Validate(specLike{Tool: "n\x00m", MemoryLimit: 1, Timeout: time.Second})
	if err == nil || !strings.Contains(err.Error(), "control characters") {
		t.Fatalf("expected argsafe failure, got %v", err)
	}
}

func TestValidateUUID(t *testing.T) {
	valid := uuid.New().String()
	id, err := ValidateUUID("invocation_id", valid)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id.String() != valid {
		t.Errorf("expected %s, got %s", valid, id.String())
	}
	if _, err := ValidateUUID("invocation_id", ""); err == nil {
		t.Error("expected error for empty UUID")
	}
	if _, err := ValidateUUID("invocation_id", "bad"); err == nil {
		t.Error("expected error for invalid UUID")
	}
}

func TestRequiredFunc(t *testing.T) {
	if err := Required("file", "a.pcap"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := Required("file", ""); err == nil {
		t.Error("expected error for empty required field")
	}
}
