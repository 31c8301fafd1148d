package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/process"
)

// fakeEngine stands in for the Docker daemon. A blocking container runs
// until the wait context ends.
type fakeEngine struct {
	mu sync.Mutex

	haveImage bool
	block     bool
	exitCode  int
	oomKilled bool
	stdout    string
	stderr    string

	pulled   bool
	killed   bool
	removed  bool
	created  *container.Config
	host     *container.HostConfig
	waitCtx  context.Context
	statusCh chan container.WaitResponse
	errCh    chan error
}

func (f *fakeEngine) Ping(context.Context) (types.Ping, error) { return types.Ping{}, nil }

func (f *fakeEngine) ImageInspect(context.Context, string, ...client.ImageInspectOption) (image.InspectResponse, error) {
	if f.haveImage {
		return image.InspectResponse{}, nil
	}
	return image.InspectResponse{}, errors.New("no such image")
}

func (f *fakeEngine) ImagePull(context.Context, string, image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	f.pulled = true
	f.mu.Unlock()
	return io.NopCloser(strings.NewReader(`{"status":"done"}`)), nil
}

func (f *fakeEngine) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig,
	_ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created, f.host = cfg, host
	return container.CreateResponse{ID: "0123456789abcdef"}, nil
}

func (f *fakeEngine) ContainerWait(ctx context.Context, _ string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	f.waitCtx = ctx
	f.statusCh = make(chan container.WaitResponse, 1)
	f.errCh = make(chan error, 1)
	return f.statusCh, f.errCh
}

func (f *fakeEngine) ContainerStart(context.Context, string, container.StartOptions) error {
	if !f.block {
		f.statusCh <- container.WaitResponse{StatusCode: int64(f.exitCode)}
		return nil
	}
	go func() {
		<-f.waitCtx.Done()
		f.errCh <- f.waitCtx.Err()
	}()
	return nil
}

func (f *fakeEngine) ContainerKill(context.Context, string, string) error {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) ContainerInspect(context.Context, string) (container.InspectResponse, error) {
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			State: &container.State{ExitCode: f.exitCode, OOMKilled: f.oomKilled},
		},
	}, nil
}

func (f *fakeEngine) ContainerLogs(context.Context, string, container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.stdout))
	if f.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(f.stderr))
	}
	return io.NopCloser(&buf), nil
}

func (f *fakeEngine) ContainerRemove(context.Context, string, container.RemoveOptions) error {
	f.mu.Lock()
	f.removed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Close() error { return nil }

func newTestRunner(f *fakeEngine) *Runner {
	return newRunner(f, Config{Image: "kalikit/tools:latest"}, logger.Nop())
}

func TestRunner_Completed(t *testing.T) {
	f := &fakeEngine{haveImage: true, stdout: "hello\n"}
	spec := process.MustSpec("echo", process.WithMemoryLimit(1_000_000_000), process.WithTimeout(5*time.Second))

	res, err := newTestRunner(f).Run(context.Background(), spec, process.Args("echo", "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "hello\n" || res.Stderr != "" {
		t.Fatalf("expected (\"hello\\n\", \"\"), got (%q, %q)", res.Stdout, res.Stderr)
	}
	if res.Outcome != process.OutcomeCompleted || res.ExitCode != 0 || res.Isolation != Name {
		t.Fatalf("expected completed/0/docker, got %s/%d/%s", res.Outcome, res.ExitCode, res.Isolation)
	}
	if !f.removed {
		t.Fatal("expected the container to be removed")
	}
	if f.pulled {
		t.Fatal("expected no pull for a present image")
	}

	if got := f.created.Entrypoint; len(got) != 1 || got[0] != "echo" {
		t.Fatalf("expected entrypoint [echo], got %v", got)
	}
	if got := f.created.Cmd; len(got) != 1 || got[0] != "hello" {
		t.Fatalf("expected cmd [hello], got %v", got)
	}
	if f.host.NetworkMode != "none" || !f.created.NetworkDisabled {
		t.Fatalf("expected networking disabled, got mode %q", f.host.NetworkMode)
	}
	if f.host.Memory != 1_000_000_000 || f.host.MemorySwap != 1_000_000_000 {
		t.Fatalf("expected memory and swap limit 1000000000, got %d/%d", f.host.Memory, f.host.MemorySwap)
	}
	if f.created.Labels["kalikit.invocation-id"] != res.InvocationID {
		t.Fatalf("expected invocation label %q, got %q", res.InvocationID, f.created.Labels["kalikit.invocation-id"])
	}
}

func TestRunner_NetworkAllowed(t *testing.T) {
	f := &fakeEngine{haveImage: true}
	spec := process.MustSpec("tshark", process.WithNetwork(true))

	if _, err := newTestRunner(f).Run(context.Background(), spec, process.Args("tshark", "-D")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.host.NetworkMode != "bridge" || f.created.NetworkDisabled {
		t.Fatalf("expected the bridge network, got mode %q disabled=%v", f.host.NetworkMode, f.created.NetworkDisabled)
	}
}

func TestRunner_NonZeroExitIsNotAnError(t *testing.T) {
	f := &fakeEngine{haveImage: true, exitCode: 2, stderr: "no symbols\n"}
	spec := process.MustSpec("nm")

	res, err := newTestRunner(f).Run(context.Background(), spec, process.Args("nm", "/bin/true"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 2 || res.Stderr != "no symbols\n" || res.Outcome != process.OutcomeCompleted {
		t.Fatalf("expected completed/2 with stderr, got %s/%d %q", res.Outcome, res.ExitCode, res.Stderr)
	}
}

func TestRunner_OOMKilled(t *testing.T) {
	f := &fakeEngine{haveImage: true, exitCode: 137, oomKilled: true}
	spec := process.MustSpec("nm", process.WithMemory("64m"))

	res, err := newTestRunner(f).Run(context.Background(), spec, process.Args("nm", "/bin/true"))
	if !errors.Is(err, process.ErrMemoryLimitExceeded) {
		t.Fatalf("expected ErrMemoryLimitExceeded, got %v", err)
	}
	if res.Outcome != process.OutcomeMemoryLimitExceeded {
		t.Fatalf("expected memory_limit_exceeded, got %s", res.Outcome)
	}
}

func TestRunner_Timeout(t *testing.T) {
	f := &fakeEngine{haveImage: true, block: true, stdout: "started\n"}
	spec := process.MustSpec("nm", process.WithTimeout(100*time.Millisecond))

	res, err := newTestRunner(f).Run(context.Background(), spec, process.Args("nm", "/bin/true"))
	if !errors.Is(err, process.ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if res.Outcome != process.OutcomeTimedOut || res.Stdout != "started\n" {
		t.Fatalf("expected timed_out with partial output, got %s %q", res.Outcome, res.Stdout)
	}
	if !f.killed || !f.removed {
		t.Fatalf("expected the container killed and removed, got killed=%v removed=%v", f.killed, f.removed)
	}
}

func TestRunner_Canceled(t *testing.T) {
	f := &fakeEngine{haveImage: true, block: true}
	spec := process.MustSpec("nm", process.WithTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	res, err := newTestRunner(f).Run(ctx, spec, process.Args("nm", "/bin/true"))
	if !errors.Is(err, process.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if res.Outcome != process.OutcomeCanceled || !f.killed {
		t.Fatalf("expected canceled and killed, got %s killed=%v", res.Outcome, f.killed)
	}
}

func TestRunner_PullsMissingImage(t *testing.T) {
	f := &fakeEngine{}
	if _, err := newTestRunner(f).Run(context.Background(), process.MustSpec("nm"), process.Args("nm", "-D", "/bin/true")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.pulled {
		t.Fatal("expected the image to be pulled")
	}
}

func TestRunner_RejectsBeforeCreating(t *testing.T) {
	f := &fakeEngine{haveImage: true}
	r := newTestRunner(f)

	res, err := r.Run(context.Background(), process.MustSpec("nm"), process.Request{})
	if !errors.Is(err, process.ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got %v", err)
	}
	if res.Outcome != process.OutcomeLaunchFailed {
		t.Fatalf("expected launch_failed, got %s", res.Outcome)
	}

	req := process.Args("nm", "/bin/true")
	req.Stdin = strings.NewReader("x")
	if _, err := r.Run(context.Background(), process.MustSpec("nm"), req); !errors.Is(err, process.ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed for stdin, got %v", err)
	}
	if f.created != nil {
		t.Fatal("expected no container to be created")
	}
}

func TestRunner_RetriesWithLargerMemory(t *testing.T) {
	f := &fakeEngine{haveImage: true, exitCode: 137, oomKilled: true}
	retrying := process.RetryRunner(newTestRunner(f), process.RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond}, logger.Nop())

	_, err := retrying.Run(context.Background(), process.MustSpec("nm", process.WithMemory("64m")), process.Args("nm", "/bin/true"))
	if !errors.Is(err, process.ErrMemoryLimitExceeded) {
		t.Fatalf("expected ErrMemoryLimitExceeded, got %v", err)
	}
	if f.host.Memory != 128*process.MiB {
		t.Fatalf("expected the second attempt at 128m, got %d", f.host.Memory)
	}
}

func TestConfig_Validate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a disabled runner to be valid, got %v", err)
	}
	cfg.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error without an image")
	}
	cfg.Image = "kalikit/tools:latest"
	cfg.TLS = &TLSConfig{Cert: "cert.pem"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for a tls cert without a key")
	}
	cfg.TLS = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Host != "unix:///var/run/docker.sock" || cfg.Network != "bridge" || cfg.PidsLimit != 256 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
