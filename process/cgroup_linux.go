package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/provider"
)

// cgroupIsolator gives every invocation its own cgroup v2 child of root
// with a hard memory.max and no swap. The child is started inside it via
// CLONE_INTO_CGROUP, so there is no window where it runs unconfined.
type cgroupIsolator struct {
	root    string
	log     *logger.Logger
	network bool
	ready   bool
}

var _ provider.Initializable = (*cgroupIsolator)(nil)

func (c *cgroupIsolator) Name() string                       { return BackendCgroup }
func (c *cgroupIsolator) IsAvailable(_ context.Context) bool { return c.ready }

func (c *cgroupIsolator) Capabilities() Capabilities {
	return Capabilities{Network: c.network, Memory: true}
}

// Init checks that root is a writable cgroup v2 directory with the memory
// controller enabled for its children.
func (c *cgroupIsolator) Init(_ context.Context) error {
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return fmt.Errorf("create cgroup root: %w", err)
	}
	var fs unix.Statfs_t
	if err := unix.Statfs(c.root, &fs); err != nil {
		return fmt.Errorf("statfs %s: %w", c.root, err)
	}
	if fs.Type != unix.CGROUP2_SUPER_MAGIC {
		return fmt.Errorf("%s is not on a cgroup v2 filesystem", c.root)
	}

	controllers, err := readCgroupFile(c.root, "cgroup.controllers")
	if err != nil {
		return err
	}
	if !hasWord(controllers, "memory") {
		return fmt.Errorf("memory controller not delegated to %s", c.root)
	}
	enabled, err := readCgroupFile(c.root, "cgroup.subtree_control")
	if err != nil {
		return err
	}
	if !hasWord(enabled, "memory") {
		if err := writeCgroupFile(c.root, "cgroup.subtree_control", "+memory"); err != nil {
			return fmt.Errorf("enable memory controller: %w", err)
		}
	}

	if err := tryNetNS(); err != nil {
		c.log.Debug("network namespaces unavailable", logger.Fields(logger.FieldIsolator, BackendCgroup, logger.FieldError, err.Error()))
	} else {
		c.network = true
	}
	c.ready = true
	return nil
}

func (c *cgroupIsolator) Health(_ context.Context) provider.HealthStatus {
	status := provider.StatusHealthy
	msg := "cgroup v2 memory limits with network namespaces"
	if !c.network {
		status = provider.StatusDegraded
		msg = "cgroup v2 memory limits without network namespaces"
	}
	return provider.HealthStatus{
		Status:  status,
		Message: msg,
		Details: map[string]any{"cgroup_root": c.root},
	}
}

func (c *cgroupIsolator) Prepare(ctx context.Context, spec Spec, cmd *exec.Cmd) (Sandbox, error) {
	id := logger.InvocationIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	dir := filepath.Join(c.root, "inv-"+id+"-"+uuid.NewString()[:8])
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cgroup: %w", err)
	}
	sb := &cgroupSandbox{dir: dir}

	settings := []struct {
		file, value string
		optional    bool
	}{
		{"memory.max", strconv.FormatInt(spec.MemoryLimit, 10), false},
		{"memory.swap.max", "0", true},
		{"memory.oom.group", "1", false},
	}
	for _, s := range settings {
		err := writeCgroupFile(dir, s.file, s.value)
		if err != nil && !(s.optional && errors.Is(err, os.ErrNotExist)) {
			_ = sb.Close()
			return nil, fmt.Errorf("set %s: %w", s.file, err)
		}
	}

	fd, err := os.Open(dir)
	if err != nil {
		_ = sb.Close()
		return nil, fmt.Errorf("open cgroup: %w", err)
	}
	sb.fd = fd

	attr := sysProcAttr(cmd)
	attr.UseCgroupFD = true
	attr.CgroupFD = int(fd.Fd())
	if !spec.Network && c.network {
		applyNetNS(attr)
	}
	return sb, nil
}

// cgroupSandbox owns one per-invocation cgroup directory.
type cgroupSandbox struct {
	dir string

	mu sync.Mutex
	fd *os.File
}

func (s *cgroupSandbox) Started(int) error {
	return s.closeFD()
}

func (s *cgroupSandbox) closeFD() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fd == nil {
		return nil
	}
	err := s.fd.Close()
	s.fd = nil
	return err
}

// MemoryExceeded reports whether the kernel OOM-killed anything in the cgroup.
func (s *cgroupSandbox) MemoryExceeded() bool {
	f, err := os.Open(filepath.Join(s.dir, "memory.events"))
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), " ")
		if !ok || (key != "oom_kill" && key != "oom_group_kill") {
			continue
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return true
		}
	}
	return false
}

// PeakMemory reads memory.peak, which needs Linux 5.19 or later.
func (s *cgroupSandbox) PeakMemory() int64 {
	v, err := readCgroupFile(s.dir, "memory.peak")
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (s *cgroupSandbox) Exited(*os.ProcessState) {}

// Terminate sends SIGTERM to every process in the cgroup.
func (s *cgroupSandbox) Terminate() error {
	return s.signalMembers(unix.SIGTERM)
}

// Kill uses cgroup.kill where the kernel has it and signals each member
// otherwise.
func (s *cgroupSandbox) Kill() error {
	err := writeCgroupFile(s.dir, "cgroup.kill", "1")
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return s.signalMembers(unix.SIGKILL)
}

func (s *cgroupSandbox) signalMembers(sig unix.Signal) error {
	procs, err := readCgroupFile(s.dir, "cgroup.procs")
	if err != nil {
		return err
	}
	for _, field := range strings.Fields(procs) {
		if pid, err := strconv.Atoi(field); err == nil {
			_ = unix.Kill(pid, sig)
		}
	}
	return nil
}

// Close waits for the cgroup to empty and removes it.
func (s *cgroupSandbox) Close() error {
	fdErr := s.closeFD()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := readCgroupFile(s.dir, "cgroup.events")
		if err != nil || strings.Contains(events, "populated 0") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := os.Remove(s.dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cgroup %s: %w", s.dir, err)
	}
	return fdErr
}

func readCgroupFile(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeCgroupFile(dir, name, value string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(value), 0)
}

func hasWord(s, word string) bool {
	for _, f := range strings.Fields(s) {
		if f == word {
			return true
		}
	}
	return false
}
