package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/rewards-points-ledger/pkg/cache"
	"github.com/sheikh-saqib/rewards-points-ledger/pkg/logger"
)

func TestCorrelationID(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", seen)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	mw := NewLoggingMiddleware(logger.NewWithWriter(&buf, "test", "info", "json"))
	h := mw.Log(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rest/users/1", nil))
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/rest/users/1"`)
}

func countingHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(strings.Repeat("x", int(n))))
	})
}

func TestIdempotencyMiddleware_Replays(t *testing.T) {
	var calls int32
	mw := NewIdempotencyMiddleware(cache.NewMemoryCache(), time.Minute, logger.NewNop())
	h := mw.Handle(countingHandler(&calls, http.StatusOK))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/rest/points/1", nil)
		req.Header.Set("Idempotency-Key", "spend-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	second := send()
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestIdempotencyMiddleware_PassThrough(t *testing.T) {
	var calls int32
	mw := NewIdempotencyMiddleware(cache.NewMemoryCache(), time.Minute, logger.NewNop())
	h := mw.Handle(countingHandler(&calls, http.StatusOK))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/rest/points/1", nil))
	}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/rest/users/1", nil)
		req.Header.Set("Idempotency-Key", "same")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_DoesNotCacheFailures(t *testing.T) {
	var calls int32
	mw := NewIdempotencyMiddleware(cache.NewMemoryCache(), time.Minute, logger.NewNop())
	h := mw.Handle(countingHandler(&calls, http.StatusBadRequest))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/rest/points/1", nil)
		req.Header.Set("Idempotency-Key", "bad")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_InFlightConflict(t *testing.T) {
	c := cache.NewMemoryCache()
	mw := NewIdempotencyMiddleware(c, time.Minute, logger.NewNop())
	var calls int32
	h := mw.Handle(countingHandler(&calls, http.StatusOK))

	_, err := c.SetNX(t.Context(), "idempotency:lock:PUT:/rest/points/1:busy", []byte("other"), time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/rest/points/1", nil)
	req.Header.Set("Idempotency-Key", "busy")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_RejectsDifferentBody(t *testing.T) {
	var (
		calls int32
		seen  []string
	)
	mw := NewIdempotencyMiddleware(cache.NewMemoryCache(), time.Minute, logger.NewNop())
	h := mw.Handle(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = append(seen, string(body))
		w.WriteHeader(http.StatusOK)
	}))

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/rest/points/1", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "spend-2")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send(`{"points":100}`).Code)
	assert.Equal(t, http.StatusOK, send(`{"points":100}`).Code)

	changed := send(`{"points":999999}`)
	assert.Equal(t, http.StatusUnprocessableEntity, changed.Code)
	assert.Empty(t, changed.Header().Get("Idempotent-Replayed"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{`{"points":100}`}, seen)
}
