package process

import (
	"context"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kbukum/kalikit/provider"
)

// watchdogIsolator is the fallback when no cgroup can be delegated. It
// samples the resident memory of the tool's process tree and kills the tree
// once it passes the limit. When the leader is reaped, the peak resident
// set the kernel kept for it and its waited-for children is checked too,
// so a spike shorter than the sampling interval is still reported.
type watchdogIsolator struct {
	interval time.Duration
	network  bool
}

var _ provider.Initializable = (*watchdogIsolator)(nil)

func (w *watchdogIsolator) Name() string                       { return BackendWatchdog }
func (w *watchdogIsolator) IsAvailable(_ context.Context) bool { return true }

func (w *watchdogIsolator) Capabilities() Capabilities {
	return Capabilities{Network: w.network, Memory: true}
}

func (w *watchdogIsolator) Init(_ context.Context) error {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		return err
	}
	w.network = tryNetNS() == nil
	return nil
}

func (w *watchdogIsolator) Health(_ context.Context) provider.HealthStatus {
	hs := provider.HealthStatus{
		Status:  provider.StatusDegraded,
		Message: "sampled memory limits",
		Details: map[string]any{"watch_interval": w.interval.String()},
	}
	if !w.network {
		hs.Message += " without network namespaces"
	}
	return hs
}

func (w *watchdogIsolator) Prepare(_ context.Context, spec Spec, cmd *exec.Cmd) (Sandbox, error) {
	if !spec.Network && w.network {
		applyNetNS(sysProcAttr(cmd))
	}
	s := &watchdogSandbox{
		treeSandbox: newTreeSandbox(w.interval),
		limit:       spec.MemoryLimit,
	}
	s.sample = s.check
	return s, nil
}

type watchdogSandbox struct {
	*treeSandbox

	limit    int64
	exceeded atomic.Bool
	peak     atomic.Int64
}

func (s *watchdogSandbox) check(rss int64) {
	s.observe(rss)
	if rss > s.limit && s.exceeded.CompareAndSwap(false, true) {
		_ = s.Kill()
	}
}

// Exited checks the peak resident set of the reaped leader. Linux reports
// ru_maxrss in kilobytes.
func (s *watchdogSandbox) Exited(state *os.ProcessState) {
	ru, ok := state.SysUsage().(*syscall.Rusage)
	if !ok || ru == nil {
		return
	}
	peak := int64(ru.Maxrss) * 1024
	s.observe(peak)
	if peak > s.limit {
		s.exceeded.Store(true)
	}
}

func (s *watchdogSandbox) observe(rss int64) {
	for {
		cur := s.peak.Load()
		if rss <= cur || s.peak.CompareAndSwap(cur, rss) {
			return
		}
	}
}

func (s *watchdogSandbox) MemoryExceeded() bool { return s.exceeded.Load() }
func (s *watchdogSandbox) PeakMemory() int64    { return s.peak.Load() }
