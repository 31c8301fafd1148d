package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/provider"
)

// Capabilities lists what an isolator can enforce.
type Capabilities struct {
	// Network is true when the backend can deny network access.
	Network bool `json:"network"`
	// Memory is true when the backend can enforce a memory ceiling.
	Memory bool `json:"memory"`
}

// Isolator confines tool processes. One is selected per Executor.
type Isolator interface {
	provider.Provider
	// Capabilities reports what the backend can enforce on this host.
	Capabilities() Capabilities
	// Prepare configures cmd for spec before it starts and returns the
	// sandbox that supervises the process once it runs.
	Prepare(ctx context.Context, spec Spec, cmd *exec.Cmd) (Sandbox, error)
}

// Sandbox is the per-invocation side of an Isolator.
type Sandbox interface {
	// Started runs after the process has started.
	Started(pid int) error
	// Exited runs once the process has been reaped, before MemoryExceeded
	// and PeakMemory are read.
	Exited(state *os.ProcessState)
	// MemoryExceeded reports whether the process hit its memory ceiling.
	MemoryExceeded() bool
	// PeakMemory returns the highest memory use observed, or 0 if unknown.
	PeakMemory() int64
	// Terminate asks the process and all of its descendants to exit.
	Terminate() error
	// Kill kills the process and all of its descendants.
	Kill() error
	// Close releases the sandbox. Call it after the last read of
	// MemoryExceeded and PeakMemory.
	Close() error
}

// backendPriority is the auto-selection order, most capable first.
var backendPriority = []string{BackendCgroup, BackendWatchdog, BackendUnconfined}

// SelectIsolator builds the backends available on this platform and picks
// one: the configured backend, or the first usable one in priority order.
func SelectIsolator(ctx context.Context, cfg IsolationConfig, log *logger.Logger) (Isolator, error) {
	cfg.ApplyDefaults()

	reg := provider.NewRegistry[Isolator]()
	registerIsolators(reg, cfg, log)
	mgr := provider.NewManager(reg, &provider.PrioritySelector[Isolator]{Priority: backendPriority}).SetLogger(log)

	for _, name := range reg.List() {
		if cfg.Backend != BackendAuto && name != cfg.Backend {
			continue
		}
		if err := mgr.InitializeWithContext(ctx, name, nil); err != nil {
			if cfg.Backend == name {
				return nil, fmt.Errorf("isolation backend %q: %w", name, err)
			}
			log.Debug("isolation backend unusable", logger.Fields(logger.FieldIsolator, name, logger.FieldError, err.Error()))
		}
	}

	if cfg.Backend != BackendAuto {
		if err := mgr.SetDefault(cfg.Backend); err != nil {
			return nil, fmt.Errorf("isolation backend %q is not supported on this platform: %w", cfg.Backend, err)
		}
	}
	iso, err := mgr.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("select isolation backend: %w", err)
	}
	return iso, nil
}

// missingCapabilities lists what iso cannot enforce for spec.
func missingCapabilities(iso Isolator, spec Spec) []string {
	caps := iso.Capabilities()
	var missing []string
	if !spec.Network && !caps.Network {
		missing = append(missing, "network")
	}
	if spec.MemoryLimit > 0 && !caps.Memory {
		missing = append(missing, "memory")
	}
	return missing
}
