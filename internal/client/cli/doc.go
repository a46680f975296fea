// Package cli provides the interactive scanner used by door staff.
//
// It wires configuration, the local guest list cache, the check-in API and
// an interactive REPL that keeps working when the server is unreachable.
// Typical flow: prompt for credentials, start a background connectivity
// watcher, then scan badges until the shift ends.
//
// Key features:
//   - Login / Logout (online with offline fallback)
//   - Scan QR payloads and manual check-in by attendee id
//   - Guest list cache refresh and status
//   - Outbox inspection, sync and discard
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
