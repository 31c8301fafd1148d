// Package resilience provides the fault-tolerance building blocks used
// around tool invocations.
//
//   - Retry: re-runs an operation with exponential backoff, passing the
//     attempt number so the caller can escalate limits between attempts
//   - CircuitBreaker and Group: fail fast for a tool that keeps failing to launch
//   - Bulkhead: caps concurrent invocations admitted by the HTTP API
//   - RateLimiter: token bucket for HTTP admission
//
// None of these run inside the executor itself. They wrap it from the
// calling layer:
//
//	breakers := resilience.NewGroup(resilience.DefaultCircuitBreakerConfig(""))
//	res, err := resilience.Retry(ctx, cfg, func(attempt int) (*process.Result, error) {
//	    var res *process.Result
//	    err := breakers.Get(spec.Tool).Execute(func() (err error) {
//	        res, err = exec.Run(ctx, escalate(spec, attempt), req)
//	        return err
//	    })
//	    return res, err
//	})
package resilience
