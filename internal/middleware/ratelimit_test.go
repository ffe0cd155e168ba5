package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/quillscribe/portal/internal/cache"
)

type stubLimiter struct {
	result *cache.RateLimitResult
	err    error

	bucket string
	ip     string
}

func (s *stubLimiter) CheckIPRateLimit(_ context.Context, bucket, ip string, _, _ int) (*cache.RateLimitResult, error) {
	s.bucket = bucket
	s.ip = ip
	return s.result, s.err
}

func rateLimited(limiter IPLimiter, rate int) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return RateLimitIP(RateLimitConfig{
		Logger:        logger,
		Limiter:       limiter,
		Bucket:        "contact",
		RatePerMinute: rate,
		Burst:         2,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
}

func TestRateLimitIP_Allowed(t *testing.T) {
	limiter := &stubLimiter{result: &cache.RateLimitResult{
		Allowed:   true,
		Remaining: 4,
		ResetAt:   time.Unix(1700000000, 0),
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	rateLimited(limiter, 5).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if limiter.ip != "203.0.113.7" || limiter.bucket != "contact" {
		t.Errorf("limiter called with bucket %q ip %q", limiter.bucket, limiter.ip)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}
	if got := rec.Header().Get("X-RateLimit-Reset"); got != "1700000000" {
		t.Errorf("X-RateLimit-Reset = %q, want 1700000000", got)
	}
}

func TestRateLimitIP_Rejected(t *testing.T) {
	limiter := &stubLimiter{result: &cache.RateLimitResult{
		Allowed:    false,
		ResetAt:    time.Now().Add(time.Minute),
		RetryAfter: 300 * time.Millisecond,
	}}

	rec := httptest.NewRecorder()
	rateLimited(limiter, 5).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}
	// Sub-second waits round up to one second.
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}

func TestRateLimitIP_FailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis: connection refused")}

	rec := httptest.NewRecorder()
	rateLimited(limiter, 5).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("expected status %d when limiter fails, got %d", http.StatusAccepted, rec.Code)
	}
}

func TestRateLimitIP_Disabled(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("must not be called")}

	rec := httptest.NewRecorder()
	rateLimited(limiter, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/contact", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if limiter.bucket != "" {
		t.Error("limiter should not be consulted when the rate is zero")
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "" {
		t.Errorf("X-RateLimit-Limit = %q, want empty", got)
	}
}

func TestRateLimitIP_RedisBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	handler := rateLimited(cache.NewFromClient(client), 1)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
		req.RemoteAddr = "198.51.100.9:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("status codes = %v, want %v", codes, want)
		}
	}

	// Other clients have their own bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
	req.RemoteAddr = "198.51.100.10:4000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected status %d for another client, got %d", http.StatusAccepted, rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := getClientIP(req); got != tt.want {
			t.Errorf("getClientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
