// Package nm lists symbols from object files with GNU nm. nm only reads
// local files, so it runs without network access.
package nm

import (
	"context"
	"time"

	"github.com/kbukum/kalikit/process"
	"github.com/kbukum/kalikit/validation"
)

// Tool is the nm binary name.
const Tool = "nm"

// DefaultSpec returns the policy nm runs under: no network, 1 GiB, 120s.
func DefaultSpec() process.Spec {
	return process.MustSpec(Tool, process.WithMemory("1g"), process.WithTimeout(120*time.Second))
}

// Mode selects an nm listing.
type Mode string

const (
	ModeBasic       Mode = "basic"
	ModeDynamic     Mode = "dynamic"
	ModeDemangle    Mode = "demangle"
	ModeNumericSort Mode = "numeric_sort"
	ModeSizeSort    Mode = "size_sort"
	ModeUndefined   Mode = "undefined"
)

var modeFlags = map[Mode]string{
	ModeBasic:       "",
	ModeDynamic:     "-D",
	ModeDemangle:    "-C",
	ModeNumericSort: "-n",
	ModeSizeSort:    "-S",
	ModeUndefined:   "-u",
}

// Modes lists every mode in a stable order.
func Modes() []Mode {
	return []Mode{ModeBasic, ModeDynamic, ModeDemangle, ModeNumericSort, ModeSizeSort, ModeUndefined}
}

// Request builds the argument vector for mode on target. target must be a
// plain path that nm cannot mistake for an option.
func Request(mode Mode, target string) (process.Request, error) {
	flag, ok := modeFlags[mode]
	v := validation.New()
	v.Custom(ok, "mode", "unknown nm mode")
	v.Argument("target", target)
	if appErr := v.Validate(); appErr != nil {
		return process.Request{}, appErr
	}

	if flag == "" {
		return process.Args(Tool, target), nil
	}
	return process.Args(Tool, flag, target), nil
}

// Client runs nm listings and blocks until each finishes.
type Client struct {
	spec process.Spec
	cmd  *process.Command
}

// Option configures a Client.
type Option func(*Client)

// WithSpec overrides the default policy.
func WithSpec(spec process.Spec) Option {
	return func(c *Client) { c.spec = spec }
}

// New creates a Client running on exec.
func New(exec *process.Executor, opts ...Option) *Client {
	c := &Client{spec: DefaultSpec()}
	for _, opt := range opts {
		opt(c)
	}
	c.cmd = exec.Command(c.spec)
	return c
}

// Spec returns the policy the client runs nm under.
func (c *Client) Spec() process.Spec { return c.spec }

// Run lists target in mode.
func (c *Client) Run(ctx context.Context, mode Mode, target string) (*process.Result, error) {
	req, err := Request(mode, target)
	if err != nil {
		return nil, err
	}
	return c.cmd.Run(ctx, req)
}

// Basic lists all symbols: nm <target>.
func (c *Client) Basic(ctx context.Context, target string) (*process.Result, error) {
	return c.Run(ctx, ModeBasic, target)
}

// Dynamic lists dynamic symbols: nm -D <target>.
func (c *Client) Dynamic(ctx context.Context, target string) (*process.Result, error) {
	return c.Run(ctx, ModeDynamic, target)
}

// Demangle lists symbols with C++ names demangled: nm -C <target>.
func (c *Client) Demangle(ctx context.Context, target string) (*process.Result, error) {
	return c.Run(ctx, ModeDemangle, target)
}

// NumericSort lists symbols sorted by address: nm -n <target>.
func (c *Client) NumericSort(ctx context.Context, target string) (*process.Result, error) {
	return c.Run(ctx, ModeNumericSort, target)
}

// SizeSort lists symbols with their sizes: nm -S <target>.
func (c *Client) SizeSort(ctx context.Context, target string) (*process.Result, error) {
	return c.Run(ctx, ModeSizeSort, target)
}

// Undefined lists only undefined symbols: nm -u <target>.
func (c *Client) Undefined(ctx context.Context, target string) (*process.Result, error) {
	return c.Run(ctx, ModeUndefined, target)
}
