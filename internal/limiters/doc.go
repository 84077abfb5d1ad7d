// Package limiters provides the Redis-backed fixed-window request limiter
// that gates the public reset-intake endpoints.
//
// # Window semantics
//
// One counter per key: INCR, then EXPIRE only on the first hit of the
// window. The counter is advanced even on requests that exceed the budget,
// so entries are self-healing and never need a background sweep; the key's
// TTL plays the role of the window-reset timestamp, and expiry resets the
// count lazily on next use. Because INCR is a single atomic read-modify-write
// in Redis, concurrent requests for the same key can never undercount.
//
// # What this package must NOT do
//
//   - Decide endpoint policy (budgets and windows come from the caller).
//   - Fail open: a Redis error propagates to the caller, which decides how
//     to present it.
//   - Be imported outside the credsvc module.
package limiters
