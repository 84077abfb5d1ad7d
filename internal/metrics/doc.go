// Package metrics provides lock-free counters for credential-service
// observability.
//
// # Design
//
// Counters are stored in uint64 slots and incremented atomically via
// [sync/atomic.AddUint64]. The write path is allocation-free; Snapshot deep
// copies into a map for export.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import credsvc or any sibling package.
//   - Expose global metric registries.
package metrics
