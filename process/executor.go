package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sys/unix"

	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/observability"
)

// errDeadline is the cancellation cause set when a Spec's timeout expires.
var errDeadline = errors.New("process: deadline reached")

// Executor runs tools under a Spec inside the selected isolation backend.
// It is safe for concurrent use; every invocation owns its own process,
// buffers, timer and sandbox.
type Executor struct {
	cfg      Config
	isolator Isolator
	log      *logger.Logger
	metrics  *observability.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger. Defaults to the "process" component logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithMetrics records invocation metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithIsolator skips backend selection and uses iso.
func WithIsolator(iso Isolator) Option {
	return func(e *Executor) { e.isolator = iso }
}

// New creates an Executor and selects its isolation backend.
func New(cfg Config, opts ...Option) (*Executor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Executor{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get("process")
	}
	if e.isolator == nil {
		iso, err := SelectIsolator(context.Background(), cfg.Isolation, e.log)
		if err != nil {
			return nil, err
		}
		e.isolator = iso
	}

	caps := e.isolator.Capabilities()
	e.log.Info("executor ready", logger.Fields(
		logger.FieldIsolator, e.isolator.Name(),
		"network_isolation", caps.Network,
		"memory_isolation", caps.Memory,
		"enforcement", cfg.Isolation.Enforcement,
	))
	return e, nil
}

// Config returns the executor configuration with defaults applied.
func (e *Executor) Config() Config { return e.cfg }

// Isolator returns the selected isolation backend.
func (e *Executor) Isolator() Isolator { return e.isolator }

// Run executes one invocation and waits for it. A non-zero exit is not an
// error. Every other outcome returns the Result, holding the output captured
// so far, together with an AppError.
func (e *Executor) Run(ctx context.Context, spec Spec, req Request) (*Result, error) {
	p := newPending(ctx, spec.Tool)
	e.execute(p, spec, req)
	return p.result, p.err
}

// Start launches one invocation on its own goroutine and returns at once.
// Canceling ctx cancels the invocation; pass context.WithoutCancel to
// detach it from a request-scoped context.
func (e *Executor) Start(ctx context.Context, spec Spec, req Request) *Pending {
	p := newPending(ctx, spec.Tool)
	go e.execute(p, spec, req)
	return p
}

func (e *Executor) execute(p *Pending, spec Spec, req Request) {
	res, err := e.invoke(p, spec, req)
	p.publish(res, err)
}

func (e *Executor) invoke(p *Pending, spec Spec, req Request) (*Result, error) {
	ctx := logger.ContextWithInvocationID(p.ctx, p.id)
	res := &Result{
		InvocationID: p.id,
		Tool:         spec.Tool,
		Argv:         slices.Clone(req.Argv),
		ExitCode:     -1,
		Isolation:    e.isolator.Name(),
		StartedAt:    time.Now(),
	}

	ctx, inv := observability.StartInvocation(ctx, spec.Tool, p.id, e.metrics,
		attribute.Int(observability.AttrArgc, len(req.Argv)),
		attribute.Bool(observability.AttrNetwork, spec.Network),
		attribute.Int64(observability.AttrMemoryLimit, spec.MemoryLimit),
		attribute.Int64(observability.AttrTimeout, spec.Timeout.Milliseconds()),
		attribute.String(observability.AttrIsolator, e.isolator.Name()),
	)
	log := e.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldTool, spec.Tool))

	finish := func(outcome Outcome, err error) (*Result, error) {
		res.Outcome = outcome
		res.Duration = time.Since(res.StartedAt)
		inv.SetAttributes(
			attribute.Int(observability.AttrExitCode, res.ExitCode),
			attribute.Bool(observability.AttrTruncated, res.Truncated),
		)
		inv.End(ctx, outcome.String(), err)
		return res, err
	}

	p.setState(StateLaunching)
	if err := spec.Validate(); err != nil {
		return finish(OutcomeLaunchFailed, RejectError(err, p.id))
	}
	if err := req.Validate(); err != nil {
		return finish(OutcomeLaunchFailed, RejectError(err, p.id))
	}
	path, err := exec.LookPath(spec.Tool)
	if err != nil {
		log.Debug("tool not found", logger.Fields(logger.FieldError, err.Error()))
		return finish(OutcomeLaunchFailed, LaunchError(spec, p.id, ReasonNotFound, err))
	}
	if missing := missingCapabilities(e.isolator, spec); len(missing) > 0 {
		if e.cfg.Isolation.Strict() {
			cause := fmt.Errorf("%s backend cannot enforce %s", e.isolator.Name(), strings.Join(missing, " and "))
			return finish(OutcomeLaunchFailed, LaunchError(spec, p.id, ReasonIsolationUnavailable, cause))
		}
		log.Warn("running without full isolation", logger.Fields(
			logger.FieldIsolator, e.isolator.Name(),
			"missing", missing,
		))
	}

	runCtx, cancel := context.WithTimeoutCause(ctx, spec.Timeout, errDeadline)
	defer cancel()

	stdout := NewBoundedBuffer(e.cfg.MaxOutputBytes)
	stderr := NewBoundedBuffer(e.cfg.MaxOutputBytes)

	cmd := exec.CommandContext(runCtx, path) //nolint:gosec // running caller-chosen tools is the purpose of this package
	cmd.Args = slices.Clone(req.Argv)
	cmd.Dir = req.Dir
	cmd.Env = buildEnv(e.cfg, req.Env)
	cmd.Stdin = req.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	sysProcAttr(cmd).Setpgid = true

	sandbox, err := e.isolator.Prepare(ctx, spec, cmd)
	if err != nil {
		return finish(OutcomeLaunchFailed, LaunchError(spec, p.id, ReasonIsolationSetup, err))
	}

	// SIGTERM the whole tree first; WaitDelay escalates to SIGKILL.
	var signaled atomic.Bool
	cmd.Cancel = func() error {
		signaled.Store(true)
		return sandbox.Terminate()
	}
	cmd.WaitDelay = e.cfg.GracePeriod

	if err := cmd.Start(); err != nil {
		e.closeSandbox(log, sandbox)
		if outcome := interrupted(runCtx); outcome != OutcomeCompleted {
			return finish(outcome, OutcomeError(outcome, spec, p.id))
		}
		return finish(OutcomeLaunchFailed, LaunchError(spec, p.id, ReasonStart, err))
	}

	pid := cmd.Process.Pid
	p.setState(StateRunning)
	inv.SetAttributes(attribute.Int(observability.AttrPID, pid))
	log.Debug("process started", logger.Fields(logger.FieldPID, pid, logger.FieldIsolator, e.isolator.Name()))

	if err := sandbox.Started(pid); err != nil {
		if e.cfg.Isolation.Strict() {
			_ = sandbox.Kill()
			_ = cmd.Wait()
			e.closeSandbox(log, sandbox)
			return finish(OutcomeLaunchFailed, LaunchError(spec, p.id, ReasonIsolationSetup, err))
		}
		log.Warn("isolation setup incomplete", logger.Fields(logger.FieldError, err.Error()))
	}

	waitErr := cmd.Wait()
	if cmd.ProcessState != nil {
		sandbox.Exited(cmd.ProcessState)
	}
	if err := sandbox.Kill(); err != nil {
		log.Error("failed to kill remaining processes", logger.Fields(logger.FieldPID, pid, logger.FieldError, err.Error()))
	}

	outcome := OutcomeCompleted
	switch {
	case sandbox.MemoryExceeded():
		outcome = OutcomeMemoryLimitExceeded
	case signaled.Load():
		outcome = interrupted(runCtx)
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	res.PeakMemory = sandbox.PeakMemory()
	e.closeSandbox(log, sandbox)

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Truncated = stdout.Truncated() || stderr.Truncated()
	inv.RecordOutput(ctx, stdout.Len(), stderr.Len())
	if res.Truncated {
		log.Warn("output truncated", logger.Fields(
			"stdout_bytes", stdout.Total(),
			"stderr_bytes", stderr.Total(),
			"limit", e.cfg.MaxOutputBytes,
		))
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && outcome == OutcomeCompleted {
		log.Warn("process wait reported an error", logger.Fields(logger.FieldError, waitErr.Error()))
	}
	log.Debug("process exited", logger.Fields(
		logger.FieldExitCode, res.ExitCode,
		logger.FieldOutcome, outcome.String(),
		logger.FieldDuration, time.Since(res.StartedAt).Milliseconds(),
	))
	return finish(outcome, OutcomeError(outcome, spec, p.id))
}

func (e *Executor) closeSandbox(log *logger.Logger, sb Sandbox) {
	if err := sb.Close(); err != nil {
		log.Error("failed to release sandbox", logger.Fields(logger.FieldError, err.Error()))
	}
}

// interrupted classifies a done context: its own deadline is a timeout and
// anything else, including the caller's deadline, is a cancel.
func interrupted(ctx context.Context) Outcome {
	switch {
	case ctx.Err() == nil:
		return OutcomeCompleted
	case errors.Is(context.Cause(ctx), errDeadline):
		return OutcomeTimedOut
	default:
		return OutcomeCanceled
	}
}

func sysProcAttr(cmd *exec.Cmd) *syscall.SysProcAttr {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	return cmd.SysProcAttr
}

// signalGroup signals every process in the group led by pgid. A group that
// no longer exists is not an error.
func signalGroup(pgid int, sig unix.Signal) error {
	if pgid <= 0 {
		return nil
	}
	if err := unix.Kill(-pgid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
