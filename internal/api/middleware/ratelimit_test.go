package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFindLimitLongestPrefix(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), nil)

	req := httptest.NewRequest(http.MethodGet, "/messages/search?q=x", nil)
	limit := rl.findLimit(req)
	if limit == nil {
		t.Fatal("expected a limit for the search endpoint")
	}
	if limit.Requests != 30 || limit.Window != time.Minute {
		t.Fatalf("search matched the wrong limit: %d per %v", limit.Requests, limit.Window)
	}

	req = httptest.NewRequest(http.MethodGet, "/messages", nil)
	limit = rl.findLimit(req)
	if limit == nil || limit.Requests != 120 {
		t.Fatalf("history matched the wrong limit: %+v", limit)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	if rl.findLimit(req) != nil {
		t.Fatal("health endpoint must not be rate limited")
	}
}

func TestRateLimiterPassthroughWithoutRedis(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), nil)

	called := false
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatal("request must pass through without redis")
	}
}

func TestWhitelist(t *testing.T) {
	rl := NewRateLimiter(nil, zerolog.Nop(), []string{"10.0.0.1", "192.168.0.0/16", "not-a-cidr/99"})

	cases := map[string]bool{
		"10.0.0.1":     true,
		"10.0.0.2":     false,
		"192.168.4.20": true,
		"172.16.0.1":   false,
		"garbage":      false,
	}
	for ip, want := range cases {
		if got := rl.isWhitelisted(ip); got != want {
			t.Errorf("isWhitelisted(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4321"
	if got := RealIP(req); got != "203.0.113.9" {
		t.Errorf("RemoteAddr: got %q", got)
	}

	req.Header.Set("X-Real-IP", "198.51.100.7")
	if got := RealIP(req); got != "198.51.100.7" {
		t.Errorf("X-Real-IP: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "192.0.2.1, 198.51.100.7")
	if got := RealIP(req); got != "192.0.2.1" {
		t.Errorf("X-Forwarded-For: got %q", got)
	}
}
