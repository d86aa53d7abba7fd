package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{"trade": {RequestsPerMinute: 1, Burst: 1}})
	handler := limiter.Middleware("trade")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/sale/buy", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesGroupsAndClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"trade": {RequestsPerMinute: 1, Burst: 1},
		"admin": {RequestsPerMinute: 1, Burst: 1},
	})
	trade := limiter.Middleware("trade")(okHandler())
	admin := limiter.Middleware("admin")(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/v1/sale/buy", nil)
	first.Header.Set("X-Real-IP", "10.0.0.1")
	second := httptest.NewRequest(http.MethodPost, "/v1/sale/buy", nil)
	second.Header.Set("X-Real-IP", "10.0.0.2")

	for _, tc := range []struct {
		handler http.Handler
		req     *http.Request
	}{{trade, first}, {admin, first}, {trade, second}} {
		res := httptest.NewRecorder()
		tc.handler.ServeHTTP(res, tc.req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected independent bucket, got %d", res.Code)
		}
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{"trade": {RequestsPerMinute: 1, Burst: 1}})
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware("trade")(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/v1/sale/buy", nil)

	handler.ServeHTTP(httptest.NewRecorder(), req)
	now = now.Add(10 * time.Minute)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected idle bucket to reset, got %d", res.Code)
	}
}

func TestUnlimitedGroupPassesThrough(t *testing.T) {
	limiter := NewRateLimiter(nil)
	handler := limiter.Middleware("public")(okHandler())
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sale", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("expected pass through, got %d", res.Code)
		}
	}
}
