package process

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/kbukum/kalikit/errors"
	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/provider"
	"github.com/kbukum/kalikit/resilience"
)

// RetryPolicy configures Retrying. A MaxAttempts of 1 disables retries.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts,omitempty" mapstructure:"max_attempts" validate:"gte=1"`
	Backoff     time.Duration `yaml:"backoff,omitempty" mapstructure:"backoff" validate:"gt=0"`
	MaxBackoff  time.Duration `yaml:"max_backoff,omitempty" mapstructure:"max_backoff" validate:"gtefield=Backoff"`
	Escalation  Escalation    `yaml:"escalation" mapstructure:"escalation"`
	// BreakerThreshold is how many consecutive launch failures of one tool
	// open its circuit breaker.
	BreakerThreshold int `yaml:"breaker_threshold,omitempty" mapstructure:"breaker_threshold" validate:"gte=1"`
	// BreakerCooldown is how long an open breaker rejects before letting a trial call through.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown,omitempty" mapstructure:"breaker_cooldown" validate:"gt=0"`
}

// Escalation grows a Spec's budget between attempts.
type Escalation struct {
	TimeoutFactor float64       `yaml:"timeout_factor,omitempty" mapstructure:"timeout_factor" validate:"gte=1"`
	MemoryFactor  float64       `yaml:"memory_factor,omitempty" mapstructure:"memory_factor" validate:"gte=1"`
	MaxTimeout    time.Duration `yaml:"max_timeout,omitempty" mapstructure:"max_timeout" validate:"gt=0"`
	MaxMemory     int64         `yaml:"max_memory,omitempty" mapstructure:"max_memory" validate:"gt=0"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (p *RetryPolicy) ApplyDefaults() {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}
	if p.Backoff == 0 {
		p.Backoff = 500 * time.Millisecond
	}
	if p.MaxBackoff == 0 {
		p.MaxBackoff = max(10*time.Second, p.Backoff)
	}
	if p.BreakerThreshold == 0 {
		p.BreakerThreshold = 5
	}
	if p.BreakerCooldown == 0 {
		p.BreakerCooldown = 30 * time.Second
	}
	p.Escalation.ApplyDefaults()
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (e *Escalation) ApplyDefaults() {
	if e.TimeoutFactor == 0 {
		e.TimeoutFactor = 2
	}
	if e.MemoryFactor == 0 {
		e.MemoryFactor = 2
	}
	if e.MaxTimeout == 0 {
		e.MaxTimeout = 30 * time.Minute
	}
	if e.MaxMemory == 0 {
		e.MaxMemory = 8 * GiB
	}
}

// Next returns the Spec for the attempt after one that ended with outcome.
// Only the budget that ran out grows, and never past its cap.
func (e Escalation) Next(spec Spec, outcome Outcome) Spec {
	switch outcome {
	case OutcomeTimedOut:
		next := time.Duration(float64(spec.Timeout) * e.TimeoutFactor)
		spec.Timeout = max(spec.Timeout, min(next, e.MaxTimeout))
	case OutcomeMemoryLimitExceeded:
		next := int64(float64(spec.MemoryLimit) * e.MemoryFactor)
		spec.MemoryLimit = max(spec.MemoryLimit, min(next, e.MaxMemory))
	}
	return spec
}

// Retrying re-runs invocations that timed out or ran out of memory with a
// larger budget. Launch failures are never retried; they feed a per-tool
// circuit breaker that fails fast with SERVICE_UNAVAILABLE once open.
type Retrying struct {
	inner    provider.RequestResponse[Invocation, *Result]
	policy   RetryPolicy
	breakers *resilience.Group
	log      *logger.Logger
}

var _ provider.RequestResponse[Invocation, *Result] = (*Retrying)(nil)

// NewRetrying wraps exec with policy.
func NewRetrying(exec *Executor, policy RetryPolicy) *Retrying {
	return RetryRunner(exec, policy, exec.log)
}

// RetryRunner wraps any runner of invocations with policy, such as one that
// runs tools in containers.
func RetryRunner(inner provider.RequestResponse[Invocation, *Result], policy RetryPolicy, log *logger.Logger) *Retrying {
	policy.ApplyDefaults()
	if log == nil {
		log = logger.Get("process")
	}
	return &Retrying{
		inner:  inner,
		policy: policy,
		breakers: resilience.NewGroup(resilience.CircuitBreakerConfig{
			MaxFailures: policy.BreakerThreshold,
			Timeout:     policy.BreakerCooldown,
			IsFailure:   isToolFailure,
			OnStateChange: func(name string, from, to resilience.State) {
				log.Warn("circuit breaker state changed", logger.Fields(
					logger.FieldTool, name,
					"from", from.String(),
					"to", to.String(),
				))
			},
		}),
		log: log,
	}
}

// Retrying wraps the executor with its configured RetryPolicy.
func (e *Executor) Retrying() *Retrying {
	return NewRetrying(e, e.cfg.Retry)
}

// Name returns the wrapped runner's name.
func (r *Retrying) Name() string { return r.inner.Name() }

// IsAvailable reports whether the wrapped runner can run tools.
func (r *Retrying) IsAvailable(ctx context.Context) bool { return r.inner.IsAvailable(ctx) }

// Execute runs inv with retries.
func (r *Retrying) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	return r.Run(ctx, inv.Spec, inv.Request)
}

// Breakers reports the breaker state of every tool seen so far.
func (r *Retrying) Breakers() map[string]resilience.State {
	return r.breakers.States()
}

// Run executes one invocation, retrying with an escalated Spec. The Result
// and error of the last attempt are returned.
func (r *Retrying) Run(ctx context.Context, spec Spec, req Request) (*Result, error) {
	current := spec
	last := OutcomeCompleted

	cfg := resilience.RetryConfig{
		MaxAttempts:    r.policy.MaxAttempts,
		InitialBackoff: r.policy.Backoff,
		MaxBackoff:     r.policy.MaxBackoff,
		BackoffFactor:  2,
		Jitter:         0.1,
		RetryIf:        retryable,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			r.log.WithContext(ctx).Info("retrying invocation", logger.Fields(
				logger.FieldTool, spec.Tool,
				logger.FieldOutcome, OutcomeOf(err).String(),
				"attempt", attempt,
				"backoff_ms", backoff.Milliseconds(),
			))
		},
	}

	return resilience.Retry(ctx, cfg, func(attempt int) (*Result, error) {
		if attempt > 1 {
			current = r.policy.Escalation.Next(current, last)
		}
		res, err := r.attempt(ctx, current, req)
		last = OutcomeOf(err)
		return res, err
	})
}

func (r *Retrying) attempt(ctx context.Context, spec Spec, req Request) (*Result, error) {
	var res *Result
	err := r.breakers.Get(spec.Tool).Execute(func() error {
		var err error
		res, err = r.inner.Execute(ctx, Invocation{Spec: spec, Request: req})
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, goerrors.ServiceUnavailable(spec.Tool).WithCause(err)
	}
	return res, err
}

func retryable(err error) bool {
	return errors.Is(err, ErrTimedOut) || errors.Is(err, ErrMemoryLimitExceeded)
}

// isToolFailure counts launch failures against a tool's breaker. Rejected
// requests say nothing about the tool and do not count.
func isToolFailure(err error) bool {
	if !errors.Is(err, ErrLaunchFailed) {
		return false
	}
	if appErr, ok := goerrors.AsAppError(err); ok {
		return appErr.Details["reason"] != ReasonInvalidRequest
	}
	return true
}
