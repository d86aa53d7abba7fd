package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crybsale/services/saled/journal"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]journal.IdempotencyKey
}

func (m *memoryStore) LookupResponse(_ context.Context, key string, now time.Time) (*journal.IdempotencyKey, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[key]
	if !ok || now.After(record.ExpiresAt) {
		return nil, false, nil
	}
	return &record, true, nil
}

func (m *memoryStore) SaveResponse(_ context.Context, record journal.IdempotencyKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.Key] = record
	return nil
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	store := &memoryStore{records: map[string]journal.IdempotencyKey{}}
	var calls int32
	handler := NewIdempotency(store, time.Hour, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte{'0' + byte(n)})
	}))

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/sale/buy", nil)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send("abc")
	require.Equal(t, "1", first.Body.String())
	replay := send("abc")
	require.Equal(t, "1", replay.Body.String())
	require.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	require.Equal(t, "2", send("").Body.String())
	require.Equal(t, "3", send("other").Body.String())
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	store := &memoryStore{records: map[string]journal.IdempotencyKey{}}
	handler := NewIdempotency(store, time.Hour, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/sale/buy", nil)
	req.Header.Set("Idempotency-Key", "abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Empty(t, store.records)
}
