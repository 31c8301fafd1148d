package process

import (
	"strings"
	"time"

	goerrors "github.com/kbukum/kalikit/errors"
	"github.com/kbukum/kalikit/validation"
)

// Spec defaults.
const (
	DefaultMemoryLimit = 1 * GiB
	DefaultTimeout     = 120 * time.Second
)

// Spec describes how a tool may run: which binary, whether it may reach the
// network, and the memory and wall-clock ceilings. A Spec is a value; the
// With methods return modified copies and the executor never changes it.
type Spec struct {
	// Tool is the binary name (resolved via PATH) or a path.
	Tool string `json:"tool" yaml:"tool" validate:"required,argsafe"`
	// Network allows network access. False runs the tool in an empty network namespace.
	Network bool `json:"network" yaml:"network"`
	// MemoryLimit is the resident memory ceiling in bytes.
	MemoryLimit int64 `json:"memory_limit" yaml:"memory_limit" validate:"gt=0"`
	// Timeout is the maximum wall-clock duration.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`
}

// SpecOption configures a Spec in NewSpec.
type SpecOption func(*specBuilder)

type specBuilder struct {
	spec Spec
	err  error
}

// WithNetwork sets whether the tool may use the network.
func WithNetwork(enabled bool) SpecOption {
	return func(b *specBuilder) { b.spec.Network = enabled }
}

// WithMemoryLimit sets the memory ceiling in bytes.
func WithMemoryLimit(bytes int64) SpecOption {
	return func(b *specBuilder) { b.spec.MemoryLimit = bytes }
}

// WithMemory sets the memory ceiling from a string such as "512m" or "2g".
func WithMemory(s string) SpecOption {
	return func(b *specBuilder) {
		n, err := ParseMemory(s)
		if err != nil {
			b.err = goerrors.InvalidInput("memory_limit", "expected a size such as 512m or 2g").WithCause(err)
			return
		}
		b.spec.MemoryLimit = n
	}
}

// WithTimeout sets the wall-clock ceiling.
func WithTimeout(d time.Duration) SpecOption {
	return func(b *specBuilder) { b.spec.Timeout = d }
}

// NewSpec builds a validated Spec. Unset fields take the defaults: no
// network, 1 GiB of memory and a 120s timeout. The tool is not looked up.
func NewSpec(tool string, opts ...SpecOption) (Spec, error) {
	b := &specBuilder{spec: Spec{
		Tool:        tool,
		MemoryLimit: DefaultMemoryLimit,
		Timeout:     DefaultTimeout,
	}}
	for _, opt := range opts {
		opt(b)
	}
	if b.err != nil {
		return Spec{}, b.err
	}
	if err := b.spec.Validate(); err != nil {
		return Spec{}, err
	}
	return b.spec, nil
}

// MustSpec is NewSpec for fixed, known-good specs. It panics on error.
func MustSpec(tool string, opts ...SpecOption) Spec {
	s, err := NewSpec(tool, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks the Spec fields. It returns an INVALID_INPUT AppError.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Tool) == "" {
		return goerrors.InvalidInput("tool", "must not be blank")
	}
	return validation.Validate(s)
}

// WithNetwork returns a copy of s with the network flag set.
func (s Spec) WithNetwork(enabled bool) Spec {
	s.Network = enabled
	return s
}

// WithMemoryLimit returns a copy of s with a new memory ceiling.
func (s Spec) WithMemoryLimit(bytes int64) Spec {
	s.MemoryLimit = bytes
	return s
}

// WithTimeout returns a copy of s with a new timeout.
func (s Spec) WithTimeout(d time.Duration) Spec {
	s.Timeout = d
	return s
}

// String renders the spec for logs.
func (s Spec) String() string {
	network := "off"
	if s.Network {
		network = "on"
	}
	return s.Tool + " (network " + network + ", memory " + FormatMemory(s.MemoryLimit) + ", timeout " + s.Timeout.String() + ")"
}
