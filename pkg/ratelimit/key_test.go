package ratelimit

import (
	"net/http/httptest"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name       string
		route      string
		identifier string
		expected   string
	}{
		{
			name:       "authenticated principal",
			route:      "POST:/reports/upload",
			identifier: "user:42",
			expected:   "rl:POST:/reports/upload:user:42",
		},
		{
			name:       "network address",
			route:      "GET:/reports/abc",
			identifier: "ip:1.2.3.4",
			expected:   "rl:GET:/reports/abc:ip:1.2.3.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.route, tt.identifier); got != tt.expected {
				t.Errorf("Key() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRoute(t *testing.T) {
	req := httptest.NewRequest("POST", "/reports/upload?verbose=1", nil)
	if got := Route(req); got != "POST:/reports/upload" {
		t.Errorf("Route() = %q, want %q", got, "POST:/reports/upload")
	}
}

func TestPrincipalIdentifier(t *testing.T) {
	if got := PrincipalIdentifier("42"); got != "user:42" {
		t.Errorf("PrincipalIdentifier() = %q, want %q", got, "user:42")
	}
}

func TestAddrIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		expected string
	}{
		{
			name:     "host with port",
			addr:     "1.2.3.4:54321",
			expected: "ip:1.2.3.4",
		},
		{
			name:     "bare host",
			addr:     "1.2.3.4",
			expected: "ip:1.2.3.4",
		},
		{
			name:     "ipv6 with port",
			addr:     "[::1]:54321",
			expected: "ip:::1",
		},
		{
			name:     "empty address",
			addr:     "",
			expected: "ip:unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddrIdentifier(tt.addr); got != tt.expected {
				t.Errorf("AddrIdentifier(%q) = %q, want %q", tt.addr, got, tt.expected)
			}
		})
	}
}
