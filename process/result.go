package process

import "time"

// Outcome classifies how an invocation ended.
type Outcome string

const (
	// OutcomeCompleted means the tool ran to exit. The exit code may be non-zero.
	OutcomeCompleted Outcome = "completed"
	// OutcomeTimedOut means the tool was killed at its deadline.
	OutcomeTimedOut Outcome = "timed_out"
	// OutcomeMemoryLimitExceeded means the tool was killed at its memory ceiling.
	OutcomeMemoryLimitExceeded Outcome = "memory_limit_exceeded"
	// OutcomeLaunchFailed means the tool never started.
	OutcomeLaunchFailed Outcome = "launch_failed"
	// OutcomeCanceled means the caller stopped the invocation.
	OutcomeCanceled Outcome = "canceled"
)

// String returns the outcome name.
func (o Outcome) String() string { return string(o) }

// State returns the terminal state matching the outcome.
func (o Outcome) State() State {
	switch o {
	case OutcomeCompleted:
		return StateCompleted
	case OutcomeTimedOut:
		return StateTimedOut
	case OutcomeMemoryLimitExceeded:
		return StateMemoryLimitExceeded
	case OutcomeCanceled:
		return StateCanceled
	default:
		return StateLaunchFailed
	}
}

// State is the lifecycle position of an invocation.
type State int32

const (
	StateCreated State = iota
	StateLaunching
	StateRunning
	StateCompleted
	StateTimedOut
	StateMemoryLimitExceeded
	StateLaunchFailed
	StateCanceled
)

var stateNames = [...]string{
	StateCreated:             "created",
	StateLaunching:           "launching",
	StateRunning:             "running",
	StateCompleted:           "completed",
	StateTimedOut:            "timed_out",
	StateMemoryLimitExceeded: "memory_limit_exceeded",
	StateLaunchFailed:        "launch_failed",
	StateCanceled:            "canceled",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result holds the output and status of one invocation.
type Result struct {
	// InvocationID identifies the invocation in logs, traces and the HTTP API.
	InvocationID string `json:"invocation_id" yaml:"invocation_id"`
	// Tool is the Spec tool that ran.
	Tool string `json:"tool" yaml:"tool"`
	// Argv is the argument vector that was passed.
	Argv []string `json:"argv" yaml:"argv"`
	// Stdout is the captured standard output.
	Stdout string `json:"stdout" yaml:"stdout"`
	// Stderr is the captured standard error.
	Stderr string `json:"stderr" yaml:"stderr"`
	// ExitCode is the process exit code. -1 if the process was killed or never ran.
	ExitCode int `json:"exit_code" yaml:"exit_code"`
	// Outcome classifies how the invocation ended.
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	// StartedAt is when the invocation began.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	// Duration is how long the invocation took, teardown included.
	Duration time.Duration `json:"duration" yaml:"duration"`
	// Truncated is set when either stream exceeded the capture limit.
	Truncated bool `json:"truncated" yaml:"truncated"`
	// Isolation names the backend that confined the process.
	Isolation string `json:"isolation" yaml:"isolation"`
	// PeakMemory is the highest memory use observed, when the backend measures it.
	PeakMemory int64 `json:"peak_memory,omitempty" yaml:"peak_memory,omitempty"`
}

// Success reports whether the tool completed with exit code 0.
func (r *Result) Success() bool {
	return r != nil && r.Outcome == OutcomeCompleted && r.ExitCode == 0
}
