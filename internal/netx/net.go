// Package netx extracts caller identities from network requests. The
// identity is the key for rate limiting and the audit trail.
package netx

import (
	"net"
	"net/http"
	"strings"
)

// Unknown is returned when no address can be determined.
const Unknown = "unknown"

// ClientIP returns the caller address for r. When trustProxy is set the
// first X-Forwarded-For hop wins, then X-Real-IP; otherwise only the socket
// address is used.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := FirstForwarded(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	return HostOnly(r.RemoteAddr)
}

// FirstForwarded returns the left-most entry of an X-Forwarded-For value.
func FirstForwarded(v string) string {
	if v == "" {
		return ""
	}
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

// HostOnly strips the port from addr. Addresses without a port are returned
// unchanged.
func HostOnly(addr string) string {
	if addr == "" {
		return Unknown
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
