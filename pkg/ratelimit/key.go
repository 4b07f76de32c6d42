package ratelimit

import (
	"fmt"
	"net"
	"net/http"
)

// Key builds the counter key base for a (route, identifier) pair.
// Window-start suffixes are appended by the limiter.
//
// Example: rl:POST:/reports/upload:user:42
func Key(route, identifier string) string {
	return fmt.Sprintf("rl:%s:%s", route, identifier)
}

// Route builds the route component of a rate-limit key from an HTTP request.
func Route(r *http.Request) string {
	return fmt.Sprintf("%s:%s", r.Method, r.URL.Path)
}

// PrincipalIdentifier derives the identifier for an authenticated principal.
func PrincipalIdentifier(principalID string) string {
	return "user:" + principalID
}

// AddrIdentifier derives the identifier from a caller network address.
// The port is stripped when present.
func AddrIdentifier(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}
