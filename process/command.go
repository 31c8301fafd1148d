package process

import "context"

// Command binds a Spec to an Executor so a tool can be called with just
// its arguments.
type Command struct {
	spec Spec
	exec *Executor
}

// NewCommand returns a Command running spec on exec.
func NewCommand(exec *Executor, spec Spec) *Command {
	return &Command{spec: spec, exec: exec}
}

// Command returns a Command for spec.
func (e *Executor) Command(spec Spec) *Command {
	return NewCommand(e, spec)
}

// Spec returns the bound Spec.
func (c *Command) Spec() Spec { return c.spec }

// Execute runs the tool with argv and returns its output. An empty argv runs
// the bare tool. The error is nil whenever the tool ran to exit, whatever
// its exit code.
func (c *Command) Execute(ctx context.Context, argv ...string) (stdout, stderr string, err error) {
	res, err := c.Run(ctx, c.request(argv))
	if res == nil {
		return "", "", err
	}
	return res.Stdout, res.Stderr, err
}

// ExecuteAsync starts the tool with argv and returns at once.
func (c *Command) ExecuteAsync(ctx context.Context, argv ...string) *Pending {
	return c.Start(ctx, c.request(argv))
}

// Run executes req under the bound Spec.
func (c *Command) Run(ctx context.Context, req Request) (*Result, error) {
	return c.exec.Run(ctx, c.spec, req)
}

// Start launches req under the bound Spec.
func (c *Command) Start(ctx context.Context, req Request) *Pending {
	return c.exec.Start(ctx, c.spec, req)
}

func (c *Command) request(argv []string) Request {
	if len(argv) == 0 {
		return Args(c.spec.Tool)
	}
	return Args(argv...)
}
