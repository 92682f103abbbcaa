// Package server is the smokedb HTTP server: a Gin engine behind net/http
// middleware, served with h2c so HTTP/2 clients work without TLS.
//
// # Middleware
//
// Server-level middleware (server/middleware) wraps every request:
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation, propagated into the request context
//   - CORS: cross-origin headers and preflight handling
//   - BodySizeLimit: request body limits
//   - RequestLogger: one log line per request with status and duration
//
// Auth is a Gin middleware for route groups that need a bearer token.
//
// # Endpoints
//
// RegisterDefaultEndpoints adds /healthz, /livez, /readyz, /info and /metrics
// (server/endpoint).
package server
