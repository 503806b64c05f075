package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sheikh-saqib/rewards-points-ledger/pkg/cache"
)

// IdempotencyMiddleware replays the stored response when a POST or PUT is
// retried with the same Idempotency-Key header and the same body. Reusing a
// key with a different body is rejected with 422. Requests without the
// header pass straight through.
type IdempotencyMiddleware struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewIdempotencyMiddleware(c cache.Cache, ttl time.Duration, log *slog.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		cache:  c,
		ttl:    ttl,
		logger: log,
	}
}

// fingerprintLimit bounds how much of a request body is hashed.
const fingerprintLimit = 1 << 20

type capturedResponse struct {
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status"`
	Body        []byte            `json:"body"`
	Headers     map[string]string `json:"headers"`
}

func (m *IdempotencyMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		dataKey := fmt.Sprintf("idempotency:data:%s:%s:%s", r.Method, r.URL.Path, key)
		lockKey := fmt.Sprintf("idempotency:lock:%s:%s:%s", r.Method, r.URL.Path, key)

		fingerprint, err := fingerprintBody(r)
		if err != nil {
			http.Error(w, "could not read request body", http.StatusBadRequest)
			return
		}

		if m.replayCached(w, r, dataKey, fingerprint) {
			return
		}

		ok, err := m.cache.SetNX(r.Context(), lockKey, []byte(RequestID(r.Context())), m.ttl)
		if err != nil {
			m.logger.Error("idempotency lock failed", "key", key, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "a request with this Idempotency-Key is already in progress", http.StatusConflict)
			return
		}
		defer m.cache.Delete(r.Context(), lockKey)

		cw := newCaptureWriter(w, 1<<20)
		next.ServeHTTP(cw, r)

		if err := m.cacheResponse(r, dataKey, fingerprint, cw); err != nil {
			m.logger.Warn("idempotency cache write failed", "key", key, "error", err)
		}
	})
}

// fingerprintBody hashes the request body and puts it back so the next
// handler can still decode it.
func fingerprintBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, fingerprintLimit))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	sum := sha256.Sum256(head)
	return hex.EncodeToString(sum[:]), nil
}

func (m *IdempotencyMiddleware) replayCached(w http.ResponseWriter, r *http.Request, dataKey, fingerprint string) bool {
	payload, ok, err := m.cache.Get(r.Context(), dataKey)
	if err != nil || !ok {
		return false
	}

	var cr capturedResponse
	if err := json.Unmarshal(payload, &cr); err != nil {
		return false
	}

	if cr.Fingerprint != fingerprint {
		m.logger.Warn("idempotency key reused with a different body", "path", r.URL.Path)
		http.Error(w, "Idempotency-Key was already used with a different request body", http.StatusUnprocessableEntity)
		return true
	}

	for k, v := range cr.Headers {
		if k == "X-Request-Id" {
			continue
		}
		w.Header().Set(k, v)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cr.Status)
	_, _ = w.Write(cr.Body)
	return true
}

// cacheResponse keeps only successful responses, so a rejected request can
// be corrected and retried under the same key.
func (m *IdempotencyMiddleware) cacheResponse(r *http.Request, dataKey, fingerprint string, cw *captureWriter) error {
	if cw.status < 200 || cw.status >= 300 || cw.truncated {
		return nil
	}

	payload, err := json.Marshal(capturedResponse{
		Fingerprint: fingerprint,
		Status:      cw.status,
		Body:        cw.buf,
		Headers:     cw.headers,
	})
	if err != nil {
		return err
	}
	return m.cache.Set(r.Context(), dataKey, payload, m.ttl)
}

type captureWriter struct {
	http.ResponseWriter
	buf       []byte
	limit     int
	truncated bool
	status    int
	headers   map[string]string
}

func newCaptureWriter(w http.ResponseWriter, limit int) *captureWriter {
	return &captureWriter{
		ResponseWriter: w,
		buf:            make([]byte, 0, 1024),
		limit:          limit,
		headers:        make(map[string]string),
	}
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	for k, v := range w.ResponseWriter.Header() {
		if len(v) > 0 {
			w.headers[k] = v[0]
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if space := w.limit - len(w.buf); len(p) > space {
		w.truncated = true
		w.buf = append(w.buf, p[:max(space, 0)]...)
	} else {
		w.buf = append(w.buf, p...)
	}
	return w.ResponseWriter.Write(p)
}
