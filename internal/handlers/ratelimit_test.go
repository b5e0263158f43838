package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/libris-lms/apiserver/config"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitRejectsAfterBurst(t *testing.T) {
	handler := RateLimit(config.RateLimit{Requests: 2, Window: time.Minute}, IPKey)(okHandler())

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("10.0.0.1:1234").Code)
	require.Equal(t, http.StatusOK, send("10.0.0.1:1235").Code)

	rec := send("10.0.0.1:1236")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	require.Equal(t, http.StatusOK, send("10.0.0.2:1234").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	handler := RateLimit(config.RateLimit{}, IPKey)(okHandler())
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "ip:192.0.2.1", IPKey(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "ip:192.0.2.1", IPKey(req))
}

func TestRateLimitIgnoresForwardedHeaders(t *testing.T) {
	handler := RateLimit(config.RateLimit{Requests: 1, Window: time.Minute}, IPKey)(okHandler())

	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("203.0.113.1"))
	require.Equal(t, http.StatusTooManyRequests, send("203.0.113.2"))
}

func TestUserKeyPrefersSubject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	require.Equal(t, "ip:192.0.2.1", UserKey(req))

	req = req.WithContext(context.WithValue(req.Context(), contextSubjectKey, "17"))
	require.Equal(t, "user:17", UserKey(req))
}

func TestAuthRateClassThroughRouter(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{
		Auth: config.RateLimit{Requests: 1, Window: time.Minute},
	})

	rec := api.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "nobody", Password: "pw"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "nobody", Password: "pw"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestBurstRateClassIsPerUser(t *testing.T) {
	api := newTestAPI(t, config.RateLimitConfig{
		Burst: config.RateLimit{Requests: 1, Window: time.Minute},
	})
	_, aliceToken := api.member(t, "alice", false)
	_, bobToken := api.member(t, "bob", false)

	require.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/api/borrows", aliceToken, BorrowRequest{BookID: 5}).Code)
	require.Equal(t, http.StatusTooManyRequests, api.do(t, http.MethodPost, "/api/return", aliceToken, ReturnRequest{BorrowID: 5}).Code)
	require.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/api/borrows", bobToken, BorrowRequest{BookID: 5}).Code)
}
