package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// TestRateLimiter_Allow verifies the bucket empties and refills.
func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	defer rl.Close()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request within the interval should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other clients have their own bucket")
	}
	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Error("bucket should refill after the interval")
	}

	now = now.Add(10 * time.Minute)
	rl.sweep(visitorIdle)
	if len(rl.buckets) != 0 {
		t.Errorf("idle buckets = %d, want 0", len(rl.buckets))
	}
}

// TestRateLimiter_CloseStopsSweeper verifies Close ends the sweeper goroutine and is idempotent.
func TestRateLimiter_CloseStopsSweeper(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)
	rl.Close()
	rl.Close()
	select {
	case <-rl.Done():
	case <-time.After(time.Second):
		t.Fatal("sweeper still running after Close")
	}
}

// TestRateLimit_KeysByHost verifies requests from one host share a bucket across ports.
func TestRateLimit_KeysByHost(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	defer rl.Close()
	h := RateLimit(rl)(okHandler)

	for i, addr := range []string{"10.0.0.1:1111", "10.0.0.1:2222"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		want := http.StatusOK
		if i == 1 {
			want = http.StatusTooManyRequests
		}
		if rr.Code != want {
			t.Errorf("request %d status = %d, want %d", i, rr.Code, want)
		}
	}
}

// TestSecurityHeaders verifies the OWASP headers are set.
func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if got := rr.Header().Get("Content-Security-Policy"); !strings.Contains(got, "img-src 'self' https:") {
		t.Errorf("CSP = %q", got)
	}
}

// TestVisitor_AssignsAndKeepsID verifies new clients get a cookie and returning clients keep theirs.
func TestVisitor_AssignsAndKeepsID(t *testing.T) {
	var seen string
	h := Visitor(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = VisitorFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != VisitorCookieName {
		t.Fatalf("cookies = %v", cookies)
	}
	if _, err := uuid.Parse(seen); err != nil || seen != cookies[0].Value {
		t.Errorf("visitor = %q, cookie = %q", seen, cookies[0].Value)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if len(rr.Result().Cookies()) != 0 {
		t.Error("returning visitor should not get a new cookie")
	}
	if seen != cookies[0].Value {
		t.Errorf("visitor changed: %q", seen)
	}
}

// TestVisitor_ReplacesMalformedCookie verifies garbage ids are not trusted.
func TestVisitor_ReplacesMalformedCookie(t *testing.T) {
	var seen string
	h := Visitor(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = VisitorFromContext(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookieName, Value: "../../etc"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("visitor = %q, want a fresh uuid", seen)
	}
}

// TestCSRF_RejectsPostWithoutToken verifies form posts need a token.
func TestCSRF_RejectsPostWithoutToken(t *testing.T) {
	key := make([]byte, 32)
	h := CSRF(key, false, nil)(okHandler)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/sites/library/layout", strings.NewReader("layout=list")))
	if rr.Code != http.StatusForbidden {
		t.Errorf("POST status = %d, want 403", rr.Code)
	}
}

// TestChain_Order verifies the last middleware runs first.
func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler, mw("inner"), mw("outer")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v", order)
	}
}
