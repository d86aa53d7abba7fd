package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"crybsale/crypto"
	"crybsale/services/saled/journal"
)

// IdempotencyStore persists replayable responses.
type IdempotencyStore interface {
	LookupResponse(ctx context.Context, key string, now time.Time) (*journal.IdempotencyKey, bool, error)
	SaveResponse(ctx context.Context, record journal.IdempotencyKey) error
}

const maxIdempotencyKeyLength = 128

// Idempotency replays the stored response of a request that carries an
// Idempotency-Key header already seen for the same subject. Server errors are
// not stored so the caller may retry them.
type Idempotency struct {
	store    IdempotencyStore
	ttl      time.Duration
	logger   *slog.Logger
	clockNow func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewIdempotency builds the middleware. A zero ttl keeps responses for 24h.
func NewIdempotency(store IdempotencyStore, ttl time.Duration, logger *slog.Logger) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Idempotency{store: store, ttl: ttl, logger: logger, clockNow: time.Now, inflight: make(map[string]struct{})}
}

// Middleware must run after authentication so keys are scoped per subject.
func (i *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if raw == "" || i == nil || i.store == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(raw) > maxIdempotencyKeyLength {
			http.Error(w, "idempotency key too long", http.StatusBadRequest)
			return
		}
		key := r.Method + " " + r.URL.Path + " " + raw
		if subject, ok := Subject(r.Context()); ok {
			key = crypto.FromArray(subject).String() + " " + key
		}

		if !i.acquire(key) {
			http.Error(w, "request with this idempotency key is in progress", http.StatusConflict)
			return
		}
		defer i.release(key)

		record, ok, err := i.store.LookupResponse(r.Context(), key, i.clockNow())
		if err != nil {
			i.logger.Error("idempotency lookup failed", "error", err)
			http.Error(w, "idempotency store unavailable", http.StatusServiceUnavailable)
			return
		}
		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(record.Status)
			_, _ = w.Write(record.Response)
			return
		}

		recorder := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)
		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		if status >= http.StatusInternalServerError {
			return
		}
		now := i.clockNow()
		err = i.store.SaveResponse(context.WithoutCancel(r.Context()), journal.IdempotencyKey{
			Key:       key,
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    status,
			Response:  recorder.buf.Bytes(),
			CreatedAt: now,
			ExpiresAt: now.Add(i.ttl),
		})
		if err != nil {
			i.logger.Error("idempotency save failed", "error", err)
		}
	})
}

func (i *Idempotency) acquire(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, busy := i.inflight[key]; busy {
		return false
	}
	i.inflight[key] = struct{}{}
	return true
}

func (i *Idempotency) release(key string) {
	i.mu.Lock()
	delete(i.inflight, key)
	i.mu.Unlock()
}

// responseRecorder captures the response for idempotent operations.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
