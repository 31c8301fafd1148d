// Package provider implements a small generic provider framework: named
// factories, runtime selection among interchangeable backends, and
// composable middleware around request/response calls.
//
// kalikit uses it twice. Isolation backends (cgroup, watchdog, unconfined)
// are providers chosen by a PrioritySelector, and every catalog action is a
// RequestResponse built with Adapt on top of the process executor.
//
// Opt-in lifecycle:
//   - Initializable: providers that need setup before use
//   - HealthChecker: providers that report more than IsAvailable
//
// # Middleware
//
// Middleware[I, O] is a function that wraps a RequestResponse provider.
// Use Chain to compose multiple middlewares:
//
//	wrapped := provider.Chain(
//	    provider.WithLogging[In, Out](log),
//	    provider.WithMetrics[In, Out](metrics),
//	    provider.WithTracing[In, Out]("kalikit"),
//	)(rawProvider)
//
// # State
//
// ContextStore[C] is a keyed store with TTL. MemoryStore backs the HTTP
// API's table of asynchronous invocations.
//
// # Usage
//
//	reg := provider.NewRegistry[Isolator]()
//	reg.RegisterFactory("cgroup", newCgroup)
//	mgr := provider.NewManager(reg, &provider.PrioritySelector[Isolator]{Priority: order})
//	mgr.InitializeWithContext(ctx, "cgroup", nil)
//	iso, _ := mgr.Get(ctx)
package provider
