package process

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kbukum/kalikit/provider"
)

// unconfined runs tools without network or memory confinement. It still
// follows the tool's process tree so a kill reaches every descendant.
type unconfined struct {
	interval time.Duration
}

func unconfinedFactory(cfg IsolationConfig) provider.Factory[Isolator] {
	return func(map[string]any) (Isolator, error) {
		return &unconfined{interval: cfg.WatchInterval}, nil
	}
}

func (*unconfined) Name() string                       { return BackendUnconfined }
func (*unconfined) IsAvailable(_ context.Context) bool { return true }
func (*unconfined) Capabilities() Capabilities         { return Capabilities{} }

func (u *unconfined) Prepare(_ context.Context, _ Spec, _ *exec.Cmd) (Sandbox, error) {
	return newTreeSandbox(u.interval), nil
}

func (*unconfined) Health(_ context.Context) provider.HealthStatus {
	return provider.HealthStatus{
		Status:  provider.StatusDegraded,
		Message: "no network or memory confinement",
	}
}

// treeSandbox signals the tool's whole process tree. A poller rescans the
// tree every interval so descendants that call setsid or outlive their
// parent are still found when the invocation ends.
type treeSandbox struct {
	tree     procTree
	interval time.Duration
	// sample, when set, receives the tree's resident bytes after each scan.
	sample func(rss int64)

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newTreeSandbox(interval time.Duration) *treeSandbox {
	return &treeSandbox{interval: interval, stop: make(chan struct{})}
}

func (s *treeSandbox) Started(pid int) error {
	s.tree.track(pid)
	if s.interval > 0 {
		s.wg.Add(1)
		go s.poll()
	}
	return nil
}

func (s *treeSandbox) poll() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		rss := s.tree.refresh()
		if s.sample != nil {
			s.sample(rss)
		}
	}
}

func (s *treeSandbox) Exited(*os.ProcessState) {}
func (s *treeSandbox) MemoryExceeded() bool    { return false }
func (s *treeSandbox) PeakMemory() int64       { return 0 }

// Terminate sends SIGTERM to every process in the tree.
func (s *treeSandbox) Terminate() error { return s.tree.signal(unix.SIGTERM) }

// Kill sends SIGKILL to every process in the tree.
func (s *treeSandbox) Kill() error { return s.tree.signal(unix.SIGKILL) }

func (s *treeSandbox) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}
