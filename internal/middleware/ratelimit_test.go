package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKeyPrefix = "products_rate_limit"

func newLimitedHandler(t *testing.T, addr string, limit int) http.Handler {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	limiter := RateLimitMiddleware(client, RateLimitConfig{
		RequestsPerWindow: limit,
		Window:            time.Minute,
		KeyPrefix:         testKeyPrefix,
	}, zap.NewNop())

	return limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestProperty_RateLimitAllowsExactlyTheLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	properties := gopter.NewProperties(nil)

	properties.Property("a client gets limit successes then 429s", prop.ForAll(
		func(limit, excess int) bool {
			mr.FlushAll()
			handler := newLimitedHandler(t, mr.Addr(), limit)

			allowed, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				req := httptest.NewRequest(http.MethodGet, "/products", nil)
				// Same host, new ephemeral port each time.
				req.RemoteAddr = fmt.Sprintf("198.51.100.7:%d", 40000+i)
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)

				switch w.Code {
				case http.StatusOK:
					allowed++
				case http.StatusTooManyRequests:
					blocked++
				}
			}
			return allowed == limit && blocked == excess
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimitMiddleware_Headers(t *testing.T) {
	mr := miniredis.RunT(t)
	handler := newLimitedHandler(t, mr.Addr(), 1)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/products", nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.NotEmpty(t, second.Header().Get("X-RateLimit-Reset"))
	assert.Contains(t, second.Body.String(), "rate limit exceeded")

	// httptest requests come from 192.0.2.1; the port is dropped from the key.
	assert.True(t, mr.Exists(testKeyPrefix+":192.0.2.1"))
	assert.Equal(t, time.Minute, mr.TTL(testKeyPrefix+":192.0.2.1"))
}

func TestRateLimitMiddleware_ClientsAreIndependent(t *testing.T) {
	mr := miniredis.RunT(t)
	handler := newLimitedHandler(t, mr.Addr(), 1)

	for _, addr := range []string{"203.0.113.1:1000", "203.0.113.2:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, addr)
	}
}

func TestRateLimitMiddleware_RedisUnavailableAllowsRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	handler := newLimitedHandler(t, mr.Addr(), 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
