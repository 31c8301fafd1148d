package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestAppError_New_Retryable(t *testing.T) {
	if err := New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout); !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
	if err := New(ErrCodeLaunchFailed, "no binary", http.StatusBadGateway); err.Retryable {
		t.Error("LAUNCH_FAILED should not be retryable")
	}
}

func TestLaunchFailed(t *testing.T) {
	cause := fmt.Errorf("exec: \"nope\": executable file not found in $PATH")
	err := LaunchFailed("nope", cause)
	if err.Code != ErrCodeLaunchFailed {
		t.Errorf("expected LAUNCH_FAILED, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", err.HTTPStatus)
	}
	if err.Details["tool"] != "nope" {
		t.Errorf("expected tool=nope, got %v", err.Details["tool"])
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be reachable through errors.Is")
	}
}

func TestTimedOut(t *testing.T) {
	err := TimedOut("sleep", 2*time.Second)
	if err.Details["timeout"] != "2s" {
		t.Errorf("expected timeout=2s, got %v", err.Details["timeout"])
	}
	if !strings.Contains(err.Message, "2s") {
		t.Errorf("expected message to mention the timeout, got %q", err.Message)
	}
}

func TestMemoryLimitExceeded(t *testing.T) {
	err := MemoryLimitExceeded("hog", 1<<20)
	if err.Details["memory_limit"] != int64(1<<20) {
		t.Errorf("expected memory_limit=1048576, got %v", err.Details["memory_limit"])
	}
}

func TestAppError_NotFound_EmptyID(t *testing.T) {
	err := NotFound("invocation", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_Unauthorized_DefaultMessage(t *testing.T) {
	if err := Unauthorized(""); err.Message != "Authentication required." {
		t.Errorf("expected default message, got %q", err.Message)
	}
	if err := Unauthorized("bad token"); err.Message != "bad token" {
		t.Errorf("expected custom message, got %q", err.Message)
	}
}

func TestAppError_WithCause_Chain(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NotFound("item", "1").WithCause(cause)
	if err.Unwrap() != cause {
		t.Error("expected cause to be set via WithCause")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("Error() should contain cause, got %q", err.Error())
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := LaunchFailed("nm", nil).WithDetails(map[string]any{"reason": "isolation_unavailable"})
	err.WithDetail("invocation_id", "abc")
	if err.Details["tool"] != "nm" {
		t.Error("expected original details to be preserved")
	}
	if err.Details["reason"] != "isolation_unavailable" || err.Details["invocation_id"] != "abc" {
		t.Errorf("expected merged details, got %v", err.Details)
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{}
	err.WithDetail("key", "value")
	if err.Details["key"] != "value" {
		t.Errorf("expected key=value, got %v", err.Details["key"])
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"LaunchFailed", LaunchFailed("x", nil), ErrCodeLaunchFailed, http.StatusBadGateway, false},
		{"TimedOut", TimedOut("x", time.Second), ErrCodeTimeout, http.StatusGatewayTimeout, true},
		{"MemoryLimitExceeded", MemoryLimitExceeded("x", 1), ErrCodeMemoryLimitExceeded, http.StatusInsufficientStorage, true},
		{"Canceled", Canceled("x"), ErrCodeCanceled, StatusClientClosedRequest, false},
		{"ServiceUnavailable", ServiceUnavailable("nm"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable, true},
		{"Timeout", Timeout("wait"), ErrCodeTimeout, http.StatusGatewayTimeout, true},
		{"MissingField", MissingField("target"), ErrCodeMissingField, http.StatusBadRequest, false},
		{"InvalidFormat", InvalidFormat("interface", "name"), ErrCodeInvalidFormat, http.StatusBadRequest, false},
		{"InvalidInput", InvalidInput("target", "bad"), ErrCodeInvalidInput, http.StatusBadRequest, false},
		{"Validation", Validation("bad input"), ErrCodeInvalidInput, http.StatusBadRequest, false},
		{"InvalidToken", InvalidToken(), ErrCodeInvalidToken, http.StatusUnauthorized, false},
		{"TokenExpired", TokenExpired(), ErrCodeTokenExpired, http.StatusUnauthorized, false},
		{"Internal", Internal(nil), ErrCodeInternal, http.StatusInternalServerError, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v, got %v", tc.retryable, tc.err.Retryable)
			}
		})
	}
}

func TestErrorCode_IsRetryableCode_Table(t *testing.T) {
	for _, code := range []ErrorCode{ErrCodeTimeout, ErrCodeMemoryLimitExceeded, ErrCodeServiceUnavailable} {
		if !IsRetryableCode(code) {
			t.Errorf("expected %s to be retryable", code)
		}
	}
	for _, code := range []ErrorCode{ErrCodeLaunchFailed, ErrCodeCanceled, ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeInternal} {
		if IsRetryableCode(code) {
			t.Errorf("expected %s to NOT be retryable", code)
		}
	}
}

func TestAppError_ToResponse(t *testing.T) {
	resp := TimedOut("tshark", time.Minute).ToResponse()
	if resp.Error.Code != ErrCodeTimeout {
		t.Errorf("expected code TIMEOUT in response, got %s", resp.Error.Code)
	}
	if !resp.Error.Retryable {
		t.Error("expected retryable=true in response")
	}
	if resp.Error.Details["tool"] != "tshark" {
		t.Error("expected tool=tshark in response details")
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("wrap: %w", Canceled("nm"))
	got, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to succeed for wrapped AppError")
	}
	if got.Code != ErrCodeCanceled {
		t.Errorf("expected CANCELED, got %s", got.Code)
	}
	if _, ok := AsAppError(fmt.Errorf("not an app error")); ok {
		t.Error("expected AsAppError to return false for non-AppError")
	}
	if IsAppError(fmt.Errorf("plain")) {
		t.Error("expected IsAppError to return false for plain error")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
	orig := NotFound("invocation", "1")
	if Wrap(fmt.Errorf("outer: %w", orig)) != orig {
		t.Error("Wrap should return the wrapped AppError")
	}
	plain := fmt.Errorf("something broke")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected Internal wrapping the plain error, got %v", got)
	}
}

func TestRateLimited(t *testing.T) {
	err := RateLimited(1500 * time.Millisecond)
	if err.Code != ErrCodeRateLimited || err.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("unexpected error %+v", err)
	}
	if !err.Retryable {
		t.Error("rate limited errors should be retryable")
	}
	if got := err.Details["retry_after_seconds"]; got != 2 {
		t.Errorf("expected retry_after_seconds=2, got %v", got)
	}
}
