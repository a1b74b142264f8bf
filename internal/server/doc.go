// Package server hosts the Fiber HTTP service that exposes the cache to other
// processes: the request middleware chain (recover + request ID), the /fetch
// entry point backed by a FetchHandler, and a catch-all that leaves /-/ paths
// to the diagnostics routes registered by the routes subpackage. Keep exports
// narrow and accept explicit dependencies.
package server
