package process

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/kalikit/logger"
)

// Pending is a handle on an invocation started with Executor.Start. Its
// Result is published once, after the process and sandbox are torn down.
type Pending struct {
	id     string
	tool   string
	ctx    context.Context
	cancel context.CancelCauseFunc
	state  atomic.Int32
	done   chan struct{}

	// Written before done is closed, read only after.
	result *Result
	err    error
}

// newPending keeps an invocation id already stored on ctx, so a call made
// inside Go reports the id of the handle Go returned.
func newPending(ctx context.Context, tool string) *Pending {
	id := logger.InvocationIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	ctx, cancel := context.WithCancelCause(ctx)
	return &Pending{
		id:     id,
		tool:   tool,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Go runs fn on its own goroutine and returns a handle on it, the way
// Executor.Start does for a single call. fn is typically a blocking run
// wrapped in middleware or retries. Its context carries the handle's id and
// is canceled by Pending.Cancel.
func Go(ctx context.Context, tool string, fn func(context.Context) (*Result, error)) *Pending {
	p := newPending(ctx, tool)
	p.setState(StateRunning)
	go func() {
		started := time.Now()
		res, err := fn(logger.ContextWithInvocationID(p.ctx, p.id))
		if res == nil {
			res = &Result{
				InvocationID: p.id,
				Tool:         tool,
				ExitCode:     -1,
				StartedAt:    started,
				Duration:     time.Since(started),
				Outcome:      OutcomeOf(err),
			}
		}
		p.publish(res, err)
	}()
	return p
}

// ID returns the invocation id.
func (p *Pending) ID() string { return p.id }

// Tool returns the tool being run.
func (p *Pending) Tool() string { return p.tool }

// State returns the current lifecycle state.
func (p *Pending) State() State { return State(p.state.Load()) }

// Done is closed when the Result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the invocation finishes or ctx is done. When ctx ends
// first only the wait is abandoned; the invocation keeps running.
func (p *Pending) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result polls without blocking. done is false while the invocation runs.
func (p *Pending) Result() (res *Result, done bool, err error) {
	select {
	case <-p.done:
		return p.result, true, p.err
	default:
		return nil, false, nil
	}
}

// Cancel stops the invocation. It ends with OutcomeCanceled unless it
// already finished. Cancel does not wait.
func (p *Pending) Cancel() {
	p.cancel(ErrCanceled)
}

func (p *Pending) setState(s State) {
	p.state.Store(int32(s))
}

func (p *Pending) publish(res *Result, err error) {
	p.result, p.err = res, err
	p.setState(res.Outcome.State())
	p.cancel(nil)
	close(p.done)
}
