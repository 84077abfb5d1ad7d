// Package identity is the authentication collaborator: it holds credential
// records (email, password hash, disabled flag), verifies bearer tokens, and
// mints them for interactive sign-in.
//
// The engine only sees the provider through its interface; deployments that
// keep accounts in an external identity platform substitute their own
// implementation. The Redis-backed provider here is the one the service ships
// with.
//
// # Architecture boundaries
//
//   - Profiles, roles, and password-policy flags live outside this package;
//     an identity is just a credential holder.
//   - Token claims carry at most uid, email, and the admin flag. Anything
//     richer belongs in the profile document.
//
// # What this package must NOT do
//
//   - Enforce the password complexity policy.
//   - Read or write profile documents.
package identity
