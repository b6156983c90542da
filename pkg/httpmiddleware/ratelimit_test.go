package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func fromIP(addr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = addr
	return r
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := serve(h, fromIP("192.168.1.1:12345"))
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, fromIP("10.0.0.1:9999")).Code)
	}

	w := serve(h, fromIP("10.0.0.1:9999"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_Keys(t *testing.T) {
	t.Run("PerIP", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
		assert.Equal(t, http.StatusOK, serve(h, fromIP("10.0.0.1:1234")).Code)
		assert.Equal(t, http.StatusOK, serve(h, fromIP("10.0.0.2:1234")).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(h, fromIP("10.0.0.1:5678")).Code)
	})
	t.Run("ForwardedFor", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())
		r1 := fromIP("192.168.1.1:4444")
		r1.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
		assert.Equal(t, http.StatusOK, serve(h, r1).Code)

		r2 := fromIP("192.168.1.2:5555")
		r2.Header.Set("X-Forwarded-For", "203.0.113.50")
		assert.Equal(t, http.StatusTooManyRequests, serve(h, r2).Code)
	})
	t.Run("Custom", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{
			Max:     1,
			Window:  time.Minute,
			KeyFunc: func(r *http.Request) string { return r.Header.Get("api_key") },
		})(okHandler())

		req := func(key string) *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("api_key", key)
			return r
		}
		assert.Equal(t, http.StatusOK, serve(h, req("key-a")).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(h, req("key-a")).Code)
		assert.Equal(t, http.StatusOK, serve(h, req("key-b")).Code)
	})
}
