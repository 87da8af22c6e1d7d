// Package observability builds the process logger and a context-aware
// wrapper that stamps each entry with the request ID.
package observability
