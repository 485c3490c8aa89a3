package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy xff", "10.0.0.2:5000", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy x-real-ip", "127.0.0.1:5000", "", "198.51.100.9", "198.51.100.9"},
		{"trusted proxy garbage header", "192.168.1.1:5000", "not-an-ip", "", "192.168.1.1"},
		{"no port", "203.0.113.7", "", "", "203.0.113.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	metrics := &securityMetrics{}

	ok := httptest.NewRequest(http.MethodGet, "/api/transactions?category=Travel", nil)
	if _, bad := detectSuspiciousRequest(ok, metrics); bad {
		t.Fatal("normal request flagged")
	}

	dotenv := httptest.NewRequest(http.MethodGet, "/.env", nil)
	if _, bad := detectSuspiciousRequest(dotenv, metrics); !bad {
		t.Fatal("dotfile request not flagged")
	}

	scanner := httptest.NewRequest(http.MethodGet, "/", nil)
	scanner.Header.Set("User-Agent", "sqlmap/1.0")
	if reason, bad := detectSuspiciousRequest(scanner, metrics); !bad || reason != "user agent sqlmap" {
		t.Fatalf("scanner not flagged: %q", reason)
	}

	if metrics.suspiciousRequests != 2 {
		t.Fatalf("expected 2 suspicious requests, got %d", metrics.suspiciousRequests)
	}
}
