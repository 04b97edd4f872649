package middleware

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIPGeneric_DirectRemote(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "192.0.2.44:51822"
	ip := clientIPGeneric(req, nil)
	if ip != "192.0.2.44" {
		t.Fatalf("expected direct remote IP, got %s", ip)
	}
}

func TestClientIPGeneric_TrustedProxyXFF(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "10.0.0.2:443"
	req.Header.Set("X-Forwarded-For", "192.0.2.99, 10.0.0.2")
	ip := clientIPGeneric(req, []string{"10.0.0.0/8"})
	if ip != "192.0.2.99" {
		t.Fatalf("expected X-Forwarded-For first value, got %s", ip)
	}
}

func TestClientIPGeneric_UntrustedProxyIgnoresXFF(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.local/", nil)
	req.RemoteAddr = "198.51.100.11:443"
	req.Header.Set("X-Forwarded-For", "192.0.2.99, 198.51.100.11")
	ip := clientIPGeneric(req, []string{"10.0.0.0/8"})
	if ip != "198.51.100.11" {
		t.Fatalf("expected remote IP when proxy untrusted, got %s", ip)
	}
}

func TestIPRateLimiter_WindowExhaustion(t *testing.T) {
	l := NewIPRateLimiter(2, time.Minute)
	if !l.allow("192.0.2.1") {
		t.Fatalf("first request should be allowed")
	}
	if !l.allow("192.0.2.1") {
		t.Fatalf("second request should be allowed")
	}
	if l.allow("192.0.2.1") {
		t.Fatalf("third request within the window should be rejected")
	}
	if !l.allow("192.0.2.2") {
		t.Fatalf("other clients should not share the budget")
	}
}
