// Package errors provides the structured error type shared by the executor,
// the tool wrappers and the HTTP API.
//
// Every failure surfaced to a caller is an *AppError carrying a
// machine-readable code, an HTTP status mapping and a retryable flag.
// Execution outcomes (launch failure, timeout, memory limit, cancellation)
// have dedicated codes so callers can tell them apart from a tool that simply
// exited non-zero.
package errors
