// Package credential generates temporary passwords and enforces the
// complexity policy applied to every credential the platform issues or
// accepts.
//
// # Policy
//
// A password passes when it is at least 12 characters long, contains an
// uppercase letter, a lowercase letter, a digit, and a non-alphanumeric
// symbol, and does not contain the target email's local-part as a
// case-insensitive substring. Generated passwords additionally avoid
// visually ambiguous characters (I, O, i, l, o, 0, 1).
//
// # What this package must NOT do
//
//   - Perform I/O or talk to any store; uniqueness probing belongs to the
//     provisioner.
//   - Use math/rand; all draws come from crypto/rand.
package credential
