// Package credsvc implements the credential lifecycle for the CodeKids
// platform: admin-mediated password resets with anti-enumeration intake,
// account provisioning with sequential institutional emails, temporary
// credential generation under a complexity policy, and the two-path admin
// authorization gate.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// credsvc is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Profile, ResetRequest, ProvisionResult, etc.). All
// internal coordination — keyed rate limiting, request and profile storage,
// role counters, audit dispatch — lives under internal/ and is never
// exported. The identity collaborator (account records, credentials, bearer
// tokens) stays behind the [IdentityProvider] interface; package identity
// carries the Redis-backed reference implementation.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or document encodings in its
//     public API.
//   - Log directly; observable behavior goes through audit events and
//     metrics.
//   - Reveal, in any public intake response, whether a target account
//     exists or whether a rate limit triggered.
package credsvc
