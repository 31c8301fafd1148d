// Package process runs external tools under a per-tool policy: whether the
// tool may reach the network, how much memory it may use and how long it
// may run.
//
// A Spec holds the policy and a Request the argument vector. The Executor
// resolves the tool, confines it with the best Isolator the host supports
// (cgroup v2, then a resident-memory watchdog, then unconfined), captures
// bounded stdout and stderr, and classifies the end of every invocation as
// one Outcome:
//
//	exec, err := process.New(process.DefaultConfig())
//	spec, err := process.NewSpec("nm", process.WithMemory("512m"))
//	res, err := exec.Run(ctx, spec, process.Args("nm", "-D", "/bin/ls"))
//
// Run blocks; Start returns a Pending handle at once. A non-zero exit code is
// a completed run. Timeouts, memory breaches, cancellation and launch
// failures return an *errors.AppError wrapping ErrTimedOut,
// ErrMemoryLimitExceeded, ErrCanceled or ErrLaunchFailed, together with the
// Result and whatever output was captured.
//
// Every invocation runs in its own process group, and its descendants are
// followed even when they start a new session, so a kill reaches the whole
// tree. The package builds on Unix only.
package process
