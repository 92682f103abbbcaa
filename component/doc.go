// Package component defines lifecycle-managed parts of a smokedb process.
//
// A Component starts, stops and reports health. The Registry starts
// components in registration order and stops them in reverse, so the
// database is registered before the HTTP server that reads from it.
// Lazy opens a resource on first use and shares it afterwards.
package component
