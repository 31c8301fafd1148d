package process

import (
	"errors"
	"fmt"

	goerrors "github.com/kbukum/kalikit/errors"
)

// Sentinels for the non-completed outcomes. Executor errors are AppErrors
// whose cause chain contains exactly one of these, so errors.Is works.
var (
	ErrLaunchFailed        = errors.New("process: launch failed")
	ErrTimedOut            = errors.New("process: timed out")
	ErrMemoryLimitExceeded = errors.New("process: memory limit exceeded")
	ErrCanceled            = errors.New("process: canceled")
)

// Failure reasons recorded in the AppError details of launch failures.
const (
	ReasonInvalidRequest       = "invalid_request"
	ReasonNotFound             = "not_found"
	ReasonIsolationUnavailable = "isolation_unavailable"
	ReasonIsolationSetup       = "isolation_setup"
	ReasonStart                = "start"
)

// OutcomeOf maps an executor error back to its Outcome. A nil error is
// OutcomeCompleted; errors that carry no sentinel map to OutcomeLaunchFailed,
// since the tool never produced a result.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, ErrMemoryLimitExceeded):
		return OutcomeMemoryLimitExceeded
	case errors.Is(err, ErrTimedOut):
		return OutcomeTimedOut
	case errors.Is(err, ErrCanceled):
		return OutcomeCanceled
	default:
		return OutcomeLaunchFailed
	}
}

// OutcomeError builds the error returned for a non-completed outcome. It
// is nil for OutcomeCompleted.
func OutcomeError(outcome Outcome, spec Spec, id string) error {
	var appErr *goerrors.AppError
	switch outcome {
	case OutcomeCompleted:
		return nil
	case OutcomeTimedOut:
		appErr = goerrors.TimedOut(spec.Tool, spec.Timeout).WithCause(ErrTimedOut)
	case OutcomeMemoryLimitExceeded:
		appErr = goerrors.MemoryLimitExceeded(spec.Tool, spec.MemoryLimit).WithCause(ErrMemoryLimitExceeded)
	case OutcomeCanceled:
		appErr = goerrors.Canceled(spec.Tool).WithCause(ErrCanceled)
	default:
		appErr = goerrors.LaunchFailed(spec.Tool, ErrLaunchFailed)
	}
	return appErr.WithDetail("invocation_id", id)
}

// LaunchError builds a LAUNCH_FAILED error with one of the Reason values.
func LaunchError(spec Spec, id, reason string, cause error) error {
	return goerrors.LaunchFailed(spec.Tool, fmt.Errorf("%w: %w", ErrLaunchFailed, cause)).
		WithDetail("invocation_id", id).
		WithDetail("reason", reason)
}

// RejectError keeps the AppError of a rejected request (INVALID_INPUT and
// friends) and marks it as a launch failure.
func RejectError(err error, id string) error {
	appErr := goerrors.Wrap(err)
	cause := ErrLaunchFailed
	if appErr.Cause != nil {
		cause = fmt.Errorf("%w: %w", ErrLaunchFailed, appErr.Cause)
	}
	return appErr.WithCause(cause).
		WithDetail("invocation_id", id).
		WithDetail("reason", ReasonInvalidRequest)
}
