package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/api/handlers"
	"github.com/lexlabs/lexcrew/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mw("first"), mw("second"), mw("third"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := Recovery(zap.NewNop())(panicking)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestID_Generates(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = handlers.RequestIDFrom(r.Context())
	})
	h := RequestID()(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	id := rec.Header().Get("X-Request-ID")
	assert.True(t, strings.HasPrefix(id, "req-"))
	assert.Equal(t, id, seen)
}

func TestRequestID_PreservesClientID(t *testing.T) {
	h := RequestID()(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	h.ServeHTTP(rec, req)

	assert.Equal(t, "client-supplied", rec.Header().Get("X-Request-ID"))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders()(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
}

func TestResponseWriter_StatusCapture(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK) // ignored
	})

	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	inner.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rw.statusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/health", "/health"},
		{"/api/v1/research", "/api/v1/research"},
		{"/api/v1/research/42", "/api/v1/research/:id"},
		{"/api/v1/research/6a3bcd12-4f01-4a4e-9b1a-0c9e8d7f6a5b", "/api/v1/research/:id"},
		{"/api/v1/research/deadbeefcafe", "/api/v1/research/:id"},
		{"/api/v1/research/latest", "/api/v1/research/latest"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := RateLimiter(ctx, 1, 2, zap.NewNop())(okHandler())

	send := func(addr string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234"))

	// A different client gets its own bucket.
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
}

func signToken(t *testing.T, secret, issuer string, expires time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"exp": expires.Unix()}
	if issuer != "" {
		claims["iss"] = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTAuth(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "test-secret", Issuer: "lexcrew"}
	h := JWTAuth(cfg, []string{"/health"}, zap.NewNop())(okHandler())

	send := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/research", nil)
		if mutate != nil {
			mutate(req)
		}
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, "test-secret", "lexcrew", time.Now().Add(time.Hour))
		rec := send(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := send(nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "AUTHENTICATION")
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", "lexcrew", time.Now().Add(time.Hour))
		rec := send(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, "test-secret", "lexcrew", time.Now().Add(-time.Hour))
		rec := send(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signToken(t, "test-secret", "someone-else", time.Now().Add(time.Hour))
		rec := send(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("skip path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSONError(rec, http.StatusUnauthorized, `quoted "message"`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), fmt.Sprintf("%q", `quoted "message"`))
}
