// Package proto holds the wire contract between scanner devices and the
// check-in server. doorkeeper.proto defines the CheckInService and its
// messages; the Go types here mirror it field for field and travel through a
// JSON codec registered with gRPC under the "json" content subtype.
package proto
