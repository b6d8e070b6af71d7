package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address requests from r are limited by. The first
// X-Forwarded-For entry wins, then X-Real-IP, then RemoteAddr without port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
