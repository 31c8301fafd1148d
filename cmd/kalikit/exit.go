package main

import (
	"errors"
	"fmt"

	"github.com/kbukum/kalikit/process"
)

// Exit codes for invocations that did not complete, following timeout(1)
// and shell conventions.
const (
	exitFailure        = 1
	exitTimedOut       = 124
	exitLaunchFailed   = 127
	exitCanceled       = 130
	exitMemoryExceeded = 137
)

// exitError carries an exit code out of a command. A nil err means the
// tool's own status was already reported through its output.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

// resultError turns an invocation outcome into the command error. A
// completed run with a non-zero exit code keeps that code.
func resultError(res *process.Result, err error) error {
	if err != nil {
		return err
	}
	if res != nil && res.ExitCode != 0 {
		return &exitError{code: res.ExitCode}
	}
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	switch {
	case errors.Is(err, process.ErrTimedOut):
		return exitTimedOut
	case errors.Is(err, process.ErrMemoryLimitExceeded):
		return exitMemoryExceeded
	case errors.Is(err, process.ErrCanceled):
		return exitCanceled
	case errors.Is(err, process.ErrLaunchFailed):
		return exitLaunchFailed
	default:
		return exitFailure
	}
}
