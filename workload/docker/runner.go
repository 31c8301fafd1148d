package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/process"
	"github.com/kbukum/kalikit/provider"
)

// Name is the runner and isolation name recorded on Results.
const Name = "docker"

// cleanupTimeout bounds the calls made after the tool has ended.
const cleanupTimeout = 30 * time.Second

// engine is the part of the Docker client the runner uses.
type engine interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// Runner runs each invocation in a fresh container. The Spec's memory
// ceiling becomes the container's memory limit with swap disabled, and a
// tool denied the network gets no network at all. A container killed by
// the kernel OOM killer is reported as OutcomeMemoryLimitExceeded.
type Runner struct {
	engine engine
	cfg    Config
	log    *logger.Logger
}

var _ provider.RequestResponse[process.Invocation, *process.Result] = (*Runner)(nil)

// NewRunner connects to the Docker daemon described by cfg.
func NewRunner(cfg Config, log *logger.Logger) (*Runner, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []client.Opt{
		client.WithHost(cfg.Host),
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}
	if cfg.TLS != nil && cfg.TLS.Cert != "" {
		opts = append(opts, client.WithTLSClientConfig(cfg.TLS.CACert, cfg.TLS.Cert, cfg.TLS.Key))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker: create client: %w", err)
	}
	return newRunner(cli, cfg, log), nil
}

func newRunner(e engine, cfg Config, log *logger.Logger) *Runner {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Get("docker")
	}
	return &Runner{engine: e, cfg: cfg, log: log}
}

// Name implements provider.Provider.
func (r *Runner) Name() string { return Name }

// IsAvailable reports whether the daemon answers.
func (r *Runner) IsAvailable(ctx context.Context) bool {
	_, err := r.engine.Ping(ctx)
	return err == nil
}

// Close releases the client connection.
func (r *Runner) Close() error { return r.engine.Close() }

// Execute runs inv.
func (r *Runner) Execute(ctx context.Context, inv process.Invocation) (*process.Result, error) {
	return r.Run(ctx, inv.Spec, inv.Request)
}

// Run executes one invocation in a container and waits for it. It reports
// outcomes and errors the same way process.Executor.Run does.
func (r *Runner) Run(ctx context.Context, spec process.Spec, req process.Request) (*process.Result, error) {
	id := logger.InvocationIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logger.ContextWithInvocationID(ctx, id)
	}
	res := &process.Result{
		InvocationID: id,
		Tool:         spec.Tool,
		Argv:         slices.Clone(req.Argv),
		ExitCode:     -1,
		Isolation:    Name,
		StartedAt:    time.Now(),
	}
	log := r.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldTool, spec.Tool))
	finish := func(outcome process.Outcome, err error) (*process.Result, error) {
		res.Outcome = outcome
		res.Duration = time.Since(res.StartedAt)
		return res, err
	}

	if err := spec.Validate(); err != nil {
		return finish(process.OutcomeLaunchFailed, process.RejectError(err, id))
	}
	if err := req.Validate(); err != nil {
		return finish(process.OutcomeLaunchFailed, process.RejectError(err, id))
	}
	if req.Stdin != nil {
		cause := errors.New("stdin is not forwarded into containers")
		return finish(process.OutcomeLaunchFailed, process.LaunchError(spec, id, process.ReasonInvalidRequest, cause))
	}
	if err := r.ensureImage(ctx); err != nil {
		return finish(process.OutcomeLaunchFailed, process.LaunchError(spec, id, process.ReasonIsolationSetup, err))
	}

	containerCfg, hostCfg := r.buildConfigs(spec, req, id)
	created, err := r.engine.ContainerCreate(ctx, containerCfg, hostCfg, nil, r.platform(), "")
	if err != nil {
		return finish(process.OutcomeLaunchFailed, process.LaunchError(spec, id, process.ReasonIsolationSetup, err))
	}
	cid := created.ID
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if err := r.engine.ContainerRemove(cctx, cid, container.RemoveOptions{Force: true}); err != nil {
			log.Warn("container not removed", logger.Fields("container", shortID(cid), logger.FieldError, err.Error()))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()
	statusCh, errCh := r.engine.ContainerWait(runCtx, cid, container.WaitConditionNextExit)
	if err := r.engine.ContainerStart(ctx, cid, container.StartOptions{}); err != nil {
		return finish(process.OutcomeLaunchFailed, process.LaunchError(spec, id, process.ReasonStart, err))
	}
	log.Debug("container started", logger.Fields("container", shortID(cid), logger.FieldIsolator, Name))

	outcome := process.OutcomeCompleted
	select {
	case st := <-statusCh:
		res.ExitCode = int(st.StatusCode)
	case err := <-errCh:
		switch {
		case ctx.Err() != nil:
			outcome = process.OutcomeCanceled
		case runCtx.Err() != nil:
			outcome = process.OutcomeTimedOut
		default:
			return finish(process.OutcomeLaunchFailed, process.LaunchError(spec, id, process.ReasonStart, err))
		}
	}

	cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer ccancel()
	if outcome != process.OutcomeCompleted {
		if err := r.engine.ContainerKill(cctx, cid, "KILL"); err != nil {
			log.Debug("container kill failed", logger.Fields("container", shortID(cid), logger.FieldError, err.Error()))
		}
	}
	if info, err := r.engine.ContainerInspect(cctx, cid); err == nil && info.ContainerJSONBase != nil && info.State != nil {
		if outcome == process.OutcomeCompleted {
			res.ExitCode = info.State.ExitCode
			if info.State.OOMKilled {
				outcome = process.OutcomeMemoryLimitExceeded
			}
		}
	}
	if err := r.collectLogs(cctx, cid, res); err != nil {
		log.Warn("container logs unavailable", logger.Fields("container", shortID(cid), logger.FieldError, err.Error()))
	}

	log.Debug("container finished", logger.Fields(
		logger.FieldExitCode, res.ExitCode,
		logger.FieldOutcome, outcome.String(),
		logger.FieldDuration, time.Since(res.StartedAt).Milliseconds(),
	))
	return finish(outcome, process.OutcomeError(outcome, spec, id))
}

// buildConfigs converts an invocation into container and host configs. The
// tool replaces the image's entrypoint and argv[0] is dropped.
func (r *Runner) buildConfigs(spec process.Spec, req process.Request, id string) (*container.Config, *container.HostConfig) {
	containerCfg := &container.Config{
		Image:      r.cfg.Image,
		Entrypoint: []string{spec.Tool},
		Cmd:        slices.Clone(req.Argv[1:]),
		Env:        slices.Clone(req.Env),
		WorkingDir: req.Dir,
		Labels: map[string]string{
			"managed-by":            "kalikit",
			"kalikit.tool":          spec.Tool,
			"kalikit.invocation-id": id,
		},
		NetworkDisabled: !spec.Network,
	}

	pids := r.cfg.PidsLimit
	hostCfg := &container.HostConfig{
		Binds: slices.Clone(r.cfg.Binds),
		Resources: container.Resources{
			Memory:     spec.MemoryLimit,
			MemorySwap: spec.MemoryLimit,
			PidsLimit:  &pids,
		},
		NetworkMode: container.NetworkMode(r.cfg.Network),
	}
	if !spec.Network {
		hostCfg.NetworkMode = "none"
	}
	return containerCfg, hostCfg
}

// collectLogs copies the demultiplexed output of cid into res.
func (r *Runner) collectLogs(ctx context.Context, cid string, res *process.Result) error {
	reader, err := r.engine.ContainerLogs(ctx, cid, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return err
	}
	defer reader.Close() //nolint:errcheck // read-only stream

	stdout := process.NewBoundedBuffer(r.cfg.MaxOutputBytes)
	stderr := process.NewBoundedBuffer(r.cfg.MaxOutputBytes)
	_, err = stdcopy.StdCopy(stdout, stderr, reader)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Truncated = stdout.Truncated() || stderr.Truncated()
	return err
}

// ensureImage pulls the image if it is not present locally.
func (r *Runner) ensureImage(ctx context.Context) error {
	if _, err := r.engine.ImageInspect(ctx, r.cfg.Image); err == nil {
		return nil
	}

	r.log.WithContext(ctx).Info("pulling image", logger.Fields("image", r.cfg.Image))
	reader, err := r.engine.ImagePull(ctx, r.cfg.Image, image.PullOptions{Platform: r.cfg.Platform})
	if err != nil {
		return fmt.Errorf("pull %s: %w", r.cfg.Image, err)
	}
	defer reader.Close() //nolint:errcheck // read-only stream
	_, err = io.Copy(io.Discard, reader)
	return err
}

// platform parses "os/arch" into an OCI platform.
func (r *Runner) platform() *ocispec.Platform {
	goos, arch, ok := strings.Cut(r.cfg.Platform, "/")
	if !ok {
		return nil
	}
	return &ocispec.Platform{OS: goos, Architecture: arch}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
