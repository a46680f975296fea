// Package common contains shared constants and sentinel errors used across
// doorkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DeviceIDHeaderName identifies the scanning device in gRPC metadata.
const DeviceIDHeaderName = "device_id"

// Staff roles carried in access tokens.
const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// RetryAfterHeaderName carries the throttling hint, in seconds, as a gRPC
// trailer.
const RetryAfterHeaderName = "retry-after"
