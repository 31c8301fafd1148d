package process_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/kalikit/process"
)

func waitForState(t *testing.T, p *process.Pending, want process.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for p.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state stuck at %s, want %s", p.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStart_ReturnsImmediately(t *testing.T) {
	exec := newExecutor(t)
	spec := helperSpec(t)

	start := time.Now()
	p := exec.Start(context.Background(), spec, helperRequest(spec, "sleep", "500ms"))
	if time.Since(start) > 200*time.Millisecond {
		t.Fatal("Start blocked on the invocation")
	}
	if p.ID() == "" || p.Tool() != spec.Tool {
		t.Errorf("unexpected handle: id=%q tool=%q", p.ID(), p.Tool())
	}
	if _, done, _ := p.Result(); done {
		t.Fatal("Result reported done while running")
	}

	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.InvocationID != p.ID() {
		t.Errorf("result id %q does not match handle id %q", res.InvocationID, p.ID())
	}
	if p.State() != process.StateCompleted {
		t.Errorf("expected completed state, got %s", p.State())
	}
	select {
	case <-p.Done():
	default:
		t.Error("Done not closed after Wait returned")
	}
	if polled, done, err := p.Result(); !done || err != nil || polled != res {
		t.Errorf("poll after completion: done=%v err=%v same=%v", done, err, polled == res)
	}
}

func TestPending_WaitAbandonsOnlyTheWait(t *testing.T) {
	exec := newExecutor(t)
	spec := helperSpec(t)
	p := exec.Start(context.Background(), spec, helperRequest(spec, "sleep", "500ms"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the wait to time out, got %v", err)
	}

	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("the invocation should keep running and complete: %v", err)
	}
	if res.Outcome != process.OutcomeCompleted || !strings.Contains(res.Stdout, "ready") {
		t.Errorf("unexpected result: %s %q", res.Outcome, res.Stdout)
	}
}

func TestPending_Cancel(t *testing.T) {
	exec := newExecutor(t)
	spec := helperSpec(t, process.WithTimeout(time.Minute))
	p := exec.Start(context.Background(), spec, helperRequest(spec, "sleep", "30s"))

	waitForState(t, p, process.StateRunning)
	p.Cancel()

	res, err := p.Wait(context.Background())
	if !errors.Is(err, process.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if res.Outcome != process.OutcomeCanceled || p.State() != process.StateCanceled {
		t.Errorf("expected canceled, got outcome %s state %s", res.Outcome, p.State())
	}
	if !p.State().Terminal() {
		t.Error("canceled must be terminal")
	}

	// Canceling a finished invocation changes nothing.
	p.Cancel()
	if again, _ := p.Wait(context.Background()); again != res {
		t.Error("the result must be published once")
	}
}

func TestStart_StartContextCancels(t *testing.T) {
	exec := newExecutor(t)
	spec := helperSpec(t, process.WithTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	p := exec.Start(ctx, spec, helperRequest(spec, "sleep", "30s"))
	waitForState(t, p, process.StateRunning)
	cancel()

	res, err := p.Wait(context.Background())
	if !errors.Is(err, process.ErrCanceled) || res.Outcome != process.OutcomeCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestStart_DetachedFromCaller(t *testing.T) {
	exec := newExecutor(t)
	spec := helperSpec(t)

	ctx, cancel := context.WithCancel(context.Background())
	p := exec.Start(context.WithoutCancel(ctx), spec, helperRequest(spec, "sleep", "300ms"))
	cancel()

	res, err := p.Wait(context.Background())
	if err != nil || res.Outcome != process.OutcomeCompleted {
		t.Fatalf("detached invocation should complete, got %v", err)
	}
}

func TestStart_LaunchFailurePublishes(t *testing.T) {
	exec := newExecutor(t)
	p := exec.Start(context.Background(), process.MustSpec("kalikit-no-such-tool"), process.Args("kalikit-no-such-tool"))

	res, err := p.Wait(context.Background())
	if !errors.Is(err, process.ErrLaunchFailed) {
		t.Fatalf("expected ErrLaunchFailed, got %v", err)
	}
	if res == nil || p.State() != process.StateLaunchFailed {
		t.Fatalf("expected a launch_failed result, state %s", p.State())
	}
}

func TestGo_CallsKeepTheHandleID(t *testing.T) {
	exec := newExecutor(t)
	spec := helperSpec(t)

	p := process.Go(context.Background(), spec.Tool, func(ctx context.Context) (*process.Result, error) {
		return exec.Run(ctx, spec, helperRequest(spec, "echo", "hi"))
	})
	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.InvocationID != p.ID() {
		t.Fatalf("expected result id %q, got %q", p.ID(), res.InvocationID)
	}
	if p.State() != process.StateCompleted {
		t.Fatalf("expected completed, got %s", p.State())
	}
}

func TestGo_CancelWithoutResult(t *testing.T) {
	p := process.Go(context.Background(), "nm", func(ctx context.Context) (*process.Result, error) {
		<-ctx.Done()
		return nil, context.Cause(ctx)
	})
	waitForState(t, p, process.StateRunning)
	p.Cancel()

	res, err := p.Wait(context.Background())
	if !errors.Is(err, process.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if res == nil || res.Outcome != process.OutcomeCanceled || res.InvocationID != p.ID() {
		t.Fatalf("expected a canceled result for %s, got %+v", p.ID(), res)
	}
	if p.State() != process.StateCanceled {
		t.Fatalf("expected canceled state, got %s", p.State())
	}
}
