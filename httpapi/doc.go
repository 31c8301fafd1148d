// Package httpapi serves the tool catalog over HTTP.
//
// Routes:
//
//	GET    /health               isolator and admission health
//	GET    /version              build info
//	GET    /v1/actions           catalog listing
//	GET    /v1/actions/:name     one action
//	POST   /v1/actions/:name     run an action, body {"params":{...}}
//	                             ?async=true answers 202 with an invocation id
//	GET    /v1/invocations/:id   state of an async invocation, with its result once finished
//	DELETE /v1/invocations/:id   cancel an async invocation
//
// Errors use the errors.AppError envelope. A tool that ran but did not
// complete also carries its partial result. The /v1 routes take an HMAC
// bearer token when auth is enabled. POST /v1/actions/:name is rate limited
// and capped in concurrency.
package httpapi
