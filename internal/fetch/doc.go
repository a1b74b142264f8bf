// Package fetch orchestrates "cache read → upstream fetch → cache write" for a
// single request. Concurrent requests that resolve to the same identifier are
// collapsed into one in-flight call, so at most one upstream fetch per
// identifier runs at any time. Results are written back through the storage
// engine on the worker pool without delaying the caller.
package fetch
