// Package identity derives the per-caller identity used for rate limiting
// and telemetry. Both concerns must key off the same string so quota and
// analytics stay consistent.
package identity

import "net/http"

const (
	// UserIDHeader lets clients supply a stable per-user identity.
	UserIDHeader = "X-User-ID"
	// ClientIPHeader is the network-address header set by the edge platform.
	ClientIPHeader = "CF-Connecting-IP"
	// Unknown is returned when neither header is present.
	Unknown = "unknown"
)

// Resolve returns the caller identity for a request. Preference order:
// explicit user id header, then the edge-supplied client IP, then a
// sentinel. It never fails; the result is always a usable string.
func Resolve(h http.Header) string {
	if id := h.Get(UserIDHeader); id != "" {
		return id
	}
	if ip := h.Get(ClientIPHeader); ip != "" {
		return ip
	}
	return Unknown
}

// ClientIP returns the caller network address for logging, or an empty
// string when the edge did not supply one.
func ClientIP(h http.Header) string {
	return h.Get(ClientIPHeader)
}
