// Package password hashes and verifies stored credentials with argon2id,
// serialized in PHC string format.
//
// # Architecture boundaries
//
// This package is pure computation. It holds no state beyond its cost
// parameters and performs no I/O; the identity provider decides where hashes
// live.
//
// # What this package must NOT do
//
//   - Enforce the complexity policy; that belongs to the credential package.
//   - Normalize passwords; raw bytes are hashed exactly as provided.
package password
