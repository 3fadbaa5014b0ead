package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/angelmondragon/settlement-core/pkg/redis"
)

func newRedisStore(t *testing.T) *pkgredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return pkgredis.NewFromRaw(raw)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"create order", http.MethodPost, "/orders", criticalIdempotencyTTL, true},
		{"escrow action", http.MethodPost, "/payments/escrow", criticalIdempotencyTTL, true},
		{"order read", http.MethodGet, "/orders", 0, false},
		{"webhook", http.MethodPost, "/payments/webhook", 0, false},
		{"mount root", http.MethodPost, "/orders/", criticalIdempotencyTTL, true},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, normalizePath(tt.pattern))
		require.Equal(t, tt.ok, ok, tt.name)
		if ok {
			require.Equal(t, tt.want, ttl, tt.name)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	mw := Idempotency(newRedisStore(t), nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/orders", "/orders", strings.NewReader(`{"paymentMethod":"cod"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.False(t, handlerCalled, "handler should not run without idempotency key")
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	mw := Idempotency(newRedisStore(t), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	req := requestWithPattern(http.MethodPost, "/orders", "/orders", strings.NewReader(`{"paymentMethod":"cod"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code)

	replay := requestWithPattern(http.MethodPost, "/orders", "/orders", strings.NewReader(`{"paymentMethod":"cod"}`))
	replay.Header.Set("Idempotency-Key", "abc")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, replay)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, `{"ok":true}`, strings.TrimSpace(rec.Body.String()))
	require.Equal(t, 1, calls)
}

func TestIdempotencyMiddlewareDetectsBodyChange(t *testing.T) {
	mw := Idempotency(newRedisStore(t), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := requestWithPattern(http.MethodPost, "/payments/escrow", "/payments/escrow", strings.NewReader(`{"action":"RELEASE"}`))
	first.Header.Set("Idempotency-Key", "k1")
	mw(handler).ServeHTTP(httptest.NewRecorder(), first)

	second := requestWithPattern(http.MethodPost, "/payments/escrow", "/payments/escrow", strings.NewReader(`{"action":"DISPUTE"}`))
	second.Header.Set("Idempotency-Key", "k1")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, second)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENCY_KEY_REUSED")
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	mw := Idempotency(newRedisStore(t), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	for _, user := range []string{"user-a", "user-b"} {
		req := requestWithPattern(http.MethodPost, "/orders", "/orders", strings.NewReader(`{}`))
		req = req.WithContext(context.WithValue(req.Context(), ctxUserID, user))
		req.Header.Set("Idempotency-Key", "same")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, 2, calls)
}

func TestIdempotencySkipsUnlistedRoutesAndNilStore(t *testing.T) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodGet, "/orders/1", "/orders/{orderId}", nil)
	Idempotency(newRedisStore(t), nil)(handler).ServeHTTP(httptest.NewRecorder(), req)

	req = requestWithPattern(http.MethodPost, "/orders", "/orders", strings.NewReader(`{}`))
	Idempotency(nil, nil)(handler).ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 2, calls)
}

func TestIdempotencyServerErrorsReleaseTheKey(t *testing.T) {
	mw := Idempotency(newRedisStore(t), nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	for range 2 {
		req := requestWithPattern(http.MethodPost, "/orders", "/orders", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyHeader, "retry-me")
		mw(handler).ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, 2, calls)
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newRedisStore(t)
	mw := Idempotency(store, nil)

	var inner *httptest.ResponseRecorder
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			dup := requestWithPattern(http.MethodPost, "/orders", "/orders", strings.NewReader(`{}`))
			dup.Header.Set(IdempotencyHeader, "busy")
			inner = httptest.NewRecorder()
			Idempotency(store, nil)(http.NotFoundHandler()).ServeHTTP(inner, dup)
		}
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/orders", "/orders", strings.NewReader(`{}`))
	req.Header.Set(IdempotencyHeader, "busy")
	outer := httptest.NewRecorder()
	mw(handler).ServeHTTP(outer, req)

	require.Equal(t, http.StatusCreated, outer.Code)
	require.Equal(t, http.StatusConflict, inner.Code)
	require.Contains(t, inner.Body.String(), "being processed")
}

func TestIdempotencyReplayIsFlagged(t *testing.T) {
	mw := Idempotency(newRedisStore(t), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	var last *httptest.ResponseRecorder
	for range 2 {
		req := requestWithPattern(http.MethodPost, "/payments/escrow", "/payments/escrow", strings.NewReader(`{"action":"HOLD"}`))
		req.Header.Set(IdempotencyHeader, "flag")
		last = httptest.NewRecorder()
		mw(handler).ServeHTTP(last, req)
	}
	require.Equal(t, http.StatusCreated, last.Code)
	require.Equal(t, "true", last.Header().Get("Idempotent-Replayed"))
}
