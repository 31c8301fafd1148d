package process

import (
	"time"

	"github.com/kbukum/kalikit/validation"
)

// Isolation backends.
const (
	BackendAuto       = "auto"
	BackendCgroup     = "cgroup"
	BackendWatchdog   = "watchdog"
	BackendUnconfined = "unconfined"
)

// Enforcement policies.
const (
	EnforcementStrict     = "strict"
	EnforcementPermissive = "permissive"
)

// Config configures an Executor.
type Config struct {
	// Name identifies the executor as a provider.
	Name string `yaml:"name,omitempty" mapstructure:"name"`
	// GracePeriod is how long to wait after SIGTERM before SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period,omitempty" mapstructure:"grace_period" validate:"gt=0"`
	// MaxOutputBytes caps each captured stream.
	MaxOutputBytes int `yaml:"max_output_bytes,omitempty" mapstructure:"max_output_bytes" validate:"gt=0"`
	// PassEnv names extra parent variables handed to every child.
	PassEnv []string `yaml:"pass_env,omitempty" mapstructure:"pass_env"`
	// InheritEnv passes the whole parent environment instead of the minimal base.
	InheritEnv bool `yaml:"inherit_env,omitempty" mapstructure:"inherit_env"`
	// Isolation selects and tunes the isolation backend.
	Isolation IsolationConfig `yaml:"isolation" mapstructure:"isolation"`
	// Retry configures the optional Retrying wrapper.
	Retry RetryPolicy `yaml:"retry" mapstructure:"retry"`
}

// IsolationConfig selects the isolation backend.
type IsolationConfig struct {
	// Backend is auto, cgroup, watchdog or unconfined.
	Backend string `yaml:"backend,omitempty" mapstructure:"backend" validate:"oneof=auto cgroup watchdog unconfined"`
	// Enforcement is strict (refuse specs the backend cannot enforce) or permissive (warn and run).
	Enforcement string `yaml:"enforcement,omitempty" mapstructure:"enforcement" validate:"oneof=strict permissive"`
	// CgroupRoot is a delegated, writable cgroup v2 directory for per-invocation cgroups.
	CgroupRoot string `yaml:"cgroup_root,omitempty" mapstructure:"cgroup_root"`
	// WatchInterval is how often the process tree is rescanned. The watchdog
	// backend samples resident memory at the same rate.
	WatchInterval time.Duration `yaml:"watch_interval,omitempty" mapstructure:"watch_interval" validate:"gt=0"`
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "process"
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 5 * time.Second
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	c.Isolation.ApplyDefaults()
	c.Retry.ApplyDefaults()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *IsolationConfig) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendAuto
	}
	if c.Enforcement == "" {
		c.Enforcement = EnforcementStrict
	}
	if c.CgroupRoot == "" {
		c.CgroupRoot = "/sys/fs/cgroup/kalikit"
	}
	if c.WatchInterval == 0 {
		c.WatchInterval = 50 * time.Millisecond
	}
}

// Strict reports whether unmet requirements refuse the invocation.
func (c IsolationConfig) Strict() bool {
	return c.Enforcement != EnforcementPermissive
}
