// Package stores provides the Redis-backed record stores of the credential
// service: profile documents, the two parallel reset-request collections,
// and the per-role-letter provisioning counters.
//
// # Encoding discipline
//
// Every record crosses the storage boundary through an explicit codec. The
// profile codec is where the legacy dual field naming lives: one canonical
// in-memory record, serialized under BOTH the current and the legacy
// external names (`role`/`rol`, `passwordChangeRequired`/
// `forcePasswordChange`) on every persist, and accepted under either on
// every load. Callers never see the legacy spellings.
//
// # Concurrency
//
// Role counters advance via INCR, a single atomic read-modify-write; two
// concurrent provisioning calls can never observe the same value. Request
// resolution uses WATCH/MULTI so the PENDING to RESOLVED transition commits
// at most once.
//
// # What this package must NOT do
//
//   - Implement workflow policy (budgets, validity windows, authorization).
//   - Be imported outside the credsvc module.
package stores
