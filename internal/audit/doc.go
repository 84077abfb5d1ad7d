// Package audit provides the canonical audit event model and sinks for the
// credential service. It replaces the original platform's activityLog
// collection: every security-relevant transition (reset requested, reset
// resolved, user provisioned, authorization denied) is emitted as one Event.
//
// # Architecture boundaries
//
// This package owns the event shape and sink implementations. Dispatch
// (buffering, backpressure, drop accounting) lives at the credsvc root so
// the engine controls its own lifecycle.
//
// # What this package must NOT do
//
//   - Perform blocking I/O in ChannelSink.Emit beyond the channel send.
//   - Import credsvc or any sibling package.
//   - Carry plaintext credentials in event metadata.
package audit
