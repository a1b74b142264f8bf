// Package cache defines the two-tier (memory + disk) asset store used by the
// fetch orchestrator. Each asset is addressed by an identifier derived from its
// request; the memory tier keeps encoded records in a guarded map, while the
// disk tier keeps one file per identifier under <root>/<namespace>/ with safe
// write semantics (temp file + rename). Reads and writes are gated by
// ReadOptions/WriteOptions, expired assets are evicted lazily on read through
// an asynchronous delete queue, and optional writes are skipped when an equal
// record is already stored.
package cache
