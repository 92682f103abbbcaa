// Package errors provides the structured error type shared by the query
// engine, the record store and the HTTP API.
//
// Every failure that crosses a package boundary is an *AppError carrying a
// machine-readable code, an HTTP status, a retryable flag and optional
// details. Two AppErrors match under errors.Is when their codes match, so
// the package-level sentinels in query and store can be tested with
// errors.Is regardless of the message or cause attached.
package errors
