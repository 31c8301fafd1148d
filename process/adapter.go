package process

import (
	"context"

	"github.com/kbukum/kalikit/provider"
)

// Invocation is one Spec and Request pair, the unit Execute runs.
type Invocation struct {
	Spec    Spec
	Request Request
}

var _ provider.RequestResponse[Invocation, *Result] = (*Executor)(nil)

// Name returns the configured executor name.
func (e *Executor) Name() string { return e.cfg.Name }

// IsAvailable reports whether the isolation backend can run tools.
func (e *Executor) IsAvailable(ctx context.Context) bool {
	return e.isolator.IsAvailable(ctx)
}

// Execute runs inv and waits for it.
func (e *Executor) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	return e.Run(ctx, inv.Spec, inv.Request)
}
