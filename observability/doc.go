// Package observability wires OpenTelemetry tracing and metrics for tool
// invocations and the HTTP API.
//
// Tracing and metrics are exported over OTLP HTTP when enabled:
//
//	shutdown, err := observability.Setup(ctx, cfg.Observability)
//	defer shutdown(ctx)
//
// Each tool run is tracked as an Invocation, which owns a process.execute
// span and updates the kalikit.invocations* instruments:
//
//	ctx, inv := observability.StartInvocation(ctx, "nm", id, metrics)
//	defer inv.End(ctx, "completed", nil)
//
// Health checks:
//
//	health := observability.NewServiceHealth("kalikit", version.Short())
//	health.AddComponent(executor.CheckHealth(ctx))
package observability
