package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"venuebook/backend/internal/store/memory"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api, _ := newTestAPI(t, Options{AllowedOrigin: "https://venue.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "https://venue.example.com" {
		t.Fatalf("expected configured origin, got %q", got)
	}
}

func TestPreflightReturnsNoContent(t *testing.T) {
	api, _ := newTestAPI(t, Options{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", res.Code)
	}
}

func TestBookingRateLimitReturns429(t *testing.T) {
	api, _ := newTestAPI(t, Options{BookingsPerMinute: 2})
	body, _ := json.Marshal(bookingBody(testMonday+"T15:00:00Z", 60))

	want := []int{http.StatusCreated, http.StatusConflict, http.StatusTooManyRequests}
	for i, status := range want {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		if res.Code != status {
			t.Fatalf("attempt %d expected %d, got %d (body: %s)", i+1, status, res.Code, res.Body.String())
		}
	}
}

func TestBookingRateLimitIgnoresForwardingHeaders(t *testing.T) {
	api, _ := newTestAPI(t, Options{BookingsPerMinute: 1})
	h := api.Handler()
	body, _ := json.Marshal(bookingBody(testMonday+"T15:00:00Z", 60))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		h.ServeHTTP(res, req)

		if i > 0 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt %d expected 429, got %d (body: %s)", i+1, res.Code, res.Body.String())
		}
	}
	if got := len(api.bookingLimiter.entries); got != 1 {
		t.Fatalf("expected one limiter key, got %d", got)
	}
}

func TestAttemptLimiterSweepsIdleKeys(t *testing.T) {
	now := time.Date(2031, 6, 2, 9, 0, 0, 0, time.UTC)
	limiter := newAttemptLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		if !limiter.Allow(fmt.Sprintf("10.0.0.%d", i)) {
			t.Fatalf("first attempt of key %d rejected", i)
		}
	}
	if got := len(limiter.entries); got != 100 {
		t.Fatalf("expected 100 keys, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	if !limiter.Allow("192.0.2.1") {
		t.Fatal("fresh key rejected after window")
	}
	if got := len(limiter.entries); got != 1 {
		t.Fatalf("expected idle keys swept, got %d keys", got)
	}

	if !limiter.Allow("192.0.2.1") || limiter.Allow("192.0.2.1") {
		t.Fatal("expected the third attempt inside the window to be rejected")
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api, _ := newTestAPI(t, Options{})
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"item_id":%q,"customer_name":"%s"}`, memory.SeedItemMeetingRoom, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestUnknownRouteAndMethodUseEnvelope(t *testing.T) {
	api, _ := newTestAPI(t, Options{})

	cases := []struct {
		method, path string
		status       int
		code         string
	}{
		{http.MethodGet, "/api/v1/nope", http.StatusNotFound, "ROUTE_NOT_FOUND"},
		{http.MethodDelete, "/api/v1/bookings/abc", http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		res := httptest.NewRecorder()
		api.Handler().ServeHTTP(res, req)

		if res.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, res.Code)
		}
		var payload envelope
		if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.Success || payload.Error == nil || payload.Error.Code != tc.code {
			t.Fatalf("%s %s: unexpected payload %+v", tc.method, tc.path, payload)
		}
	}
}

func TestRecovererHidesPanicDetails(t *testing.T) {
	api := &API{logger: zap.NewNop()}
	h := api.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("db password is hunter2")
	}))

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "hunter2") {
		t.Fatalf("panic value leaked into response: %s", res.Body.String())
	}
}
