package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/careconnect/careconnect/internal/platform/auth"
)

func frozenStore(cfg RateLimitConfig, at time.Time) *limiterStore {
	s := newLimiterStore(cfg)
	s.now = func() time.Time { return at }
	return s
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func callAs(t *testing.T, h echo.HandlerFunc, userID string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID != "" {
		claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinBurst(t *testing.T) {
	store := frozenStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5}, time.Now())
	h := rateLimit(store)(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := callAs(t, h, "")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit 10, got %q", i+1, got)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(4-i) {
			t.Errorf("request %d: expected X-RateLimit-Remaining %d, got %q", i+1, 4-i, got)
		}
	}
}

func TestRateLimit_ExceedsBurst(t *testing.T) {
	store := frozenStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}, time.Now())
	h := rateLimit(store)(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := callAs(t, h, ""); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := callAs(t, h, "")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected Retry-After >= 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_RefillsOverTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	store.now = func() time.Time { return now }
	h := rateLimit(store)(okHandler)

	if _, err := callAs(t, h, ""); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := callAs(t, h, ""); err == nil {
		t.Fatal("expected second request to be limited")
	}

	now = now.Add(time.Second)
	if _, err := callAs(t, h, ""); err != nil {
		t.Fatalf("expected refill after one second, got %v", err)
	}
}

func TestRateLimit_PerUserIsolation(t *testing.T) {
	store := frozenStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, time.Now())
	h := rateLimit(store)(okHandler)

	if _, err := callAs(t, h, "user-a"); err != nil {
		t.Fatalf("user-a first request: %v", err)
	}
	if _, err := callAs(t, h, "user-a"); err == nil {
		t.Fatal("user-a second request: expected rate limit error")
	}
	if _, err := callAs(t, h, "user-b"); err != nil {
		t.Fatalf("user-b first request: expected separate limiter, got %v", err)
	}
}

func TestLimiterStore_EvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	store.now = func() time.Time { return now }

	store.get("ip:10.0.0.1")
	store.get("ip:10.0.0.2")
	if store.size() != 2 {
		t.Fatalf("expected 2 clients, got %d", store.size())
	}

	now = now.Add(2 * time.Minute)
	store.get("ip:10.0.0.3")
	if store.size() != 1 {
		t.Errorf("expected idle clients to be evicted, got %d", store.size())
	}
}

func TestLimiterStore_SameKeySameLimiter(t *testing.T) {
	store := newLimiterStore(DefaultRateLimitConfig())
	if store.get("k1") != store.get("k1") {
		t.Error("expected same limiter for same key")
	}
	if store.get("k1") == store.get("k2") {
		t.Error("expected different limiter for different key")
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 20 || cfg.BurstSize != 40 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
