// Package httpapi exposes the credential service over HTTP.
//
// Four POST endpoints mirror the platform's original surface, response
// messages included, so existing frontend code keeps working unchanged:
// /requestAdminPasswordReset, /resolveAdminPasswordReset, /adminCreateUser,
// and /requestPasswordReset. A GET /healthz is provided for probes.
//
// # Architecture boundaries
//
// Handlers translate between HTTP and the engine: request decoding, client
// IP extraction, the admin gate, and the error-to-status mapping. All
// domain decisions stay in the engine.
//
// # What this package must NOT do
//
//   - Distinguish unknown accounts, rate-limited callers, or backend
//     failures on the public intake responses.
//   - Touch the stores directly.
package httpapi
