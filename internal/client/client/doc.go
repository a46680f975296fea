// Package client contains the scanner's connection to the doorkeeper server.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface): staff
//     Register/GetSalt/Login, Ping, CheckIn, CheckInAttendee and the offline
//     guest list snapshot.
//  2. A concrete gRPC implementation (see GRPCClient) that manages a
//     connection, injects an access token via an interceptor, transparently
//     refreshes expired tokens, and maps gRPC status codes to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Transport conditions are exposed as sentinel errors matched with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrLocalDataNotAvailable.
// ErrUnavailable also covers deadlines: a check-in that timed out may have
// been committed by the server, so callers must treat it as an unknown
// outcome and retry rather than report a failure.
//
// Check-in rejections (invalid code, already used, throttled) are not errors;
// they come back as a models.CheckInResult.
package client
