package process_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/kbukum/kalikit/errors"
	"github.com/kbukum/kalikit/process"
)

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want process.Outcome
	}{
		{nil, process.OutcomeCompleted},
		{fmt.Errorf("wrapped: %w", process.ErrTimedOut), process.OutcomeTimedOut},
		{goerrors.MemoryLimitExceeded("nm", process.GiB).WithCause(process.ErrMemoryLimitExceeded), process.OutcomeMemoryLimitExceeded},
		{goerrors.Canceled("nm").WithCause(process.ErrCanceled), process.OutcomeCanceled},
		{process.ErrLaunchFailed, process.OutcomeLaunchFailed},
		{errors.New("unknown"), process.OutcomeLaunchFailed},
	}
	for _, tt := range tests {
		if got := process.OutcomeOf(tt.err); got != tt.want {
			t.Errorf("OutcomeOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestOutcome_State(t *testing.T) {
	tests := map[process.Outcome]process.State{
		process.OutcomeCompleted:           process.StateCompleted,
		process.OutcomeTimedOut:            process.StateTimedOut,
		process.OutcomeMemoryLimitExceeded: process.StateMemoryLimitExceeded,
		process.OutcomeLaunchFailed:        process.StateLaunchFailed,
		process.OutcomeCanceled:            process.StateCanceled,
	}
	for outcome, state := range tests {
		if got := outcome.State(); got != state {
			t.Errorf("%s.State() = %s, want %s", outcome, got, state)
		}
		if !state.Terminal() {
			t.Errorf("%s should be terminal", state)
		}
		if state.String() != outcome.String() {
			t.Errorf("state %q and outcome %q should share a name", state, outcome)
		}
	}
	for _, s := range []process.State{process.StateCreated, process.StateLaunching, process.StateRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if process.State(99).String() != "unknown" {
		t.Error("out of range states should render as unknown")
	}
}

func TestState_MarshalText(t *testing.T) {
	b, err := process.StateRunning.MarshalText()
	if err != nil || string(b) != "running" {
		t.Errorf("MarshalText = %q, %v", b, err)
	}
}
