// Package adminctl holds shared plumbing for the administrative tooling:
// endpoint resolution against the same override variable the dashboard uses,
// so a developer pointing the browser at a local server can point the CLI at
// it with one setting.
package adminctl
