package fxrate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type memoryCache map[string]decimal.Decimal

func (m memoryCache) Get(currency, day string) (decimal.Decimal, bool, error) {
	rate, ok := m[currency+"|"+day]
	return rate, ok, nil
}

func (m memoryCache) Put(currency, day string, rate decimal.Decimal) error {
	m[currency+"|"+day] = rate
	return nil
}

func newServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRateToReference(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"success rounds to six places", http.StatusOK, `{"result":"success","rates":{"EUR":0.92123456,"USD":1}}`, "0.921235"},
		{"error result falls back", http.StatusOK, `{"result":"error","error-type":"unsupported-code"}`, "1"},
		{"missing reference rate falls back", http.StatusOK, `{"result":"success","rates":{"USD":1}}`, "1"},
		{"http error falls back", http.StatusInternalServerError, `oops`, "1"},
		{"malformed body falls back", http.StatusOK, `{`, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := newServer(t, tt.status, tt.body, &hits)
			r := NewResolver(Config{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

			got := r.RateToReference(context.Background(), "usd")

			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestRateToReference_ReferenceCurrencySkipsLookup(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, http.StatusOK, `{"result":"success","rates":{"EUR":2}}`, &hits)
	r := NewResolver(Config{BaseURL: srv.URL}, zap.NewNop())

	assert.True(t, r.RateToReference(context.Background(), "EUR").Equal(decimal.NewFromInt(1)))
	assert.Zero(t, hits.Load())
}

func TestRateToReference_UnreachableFallsBack(t *testing.T) {
	r := NewResolver(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, zap.NewNop())

	assert.True(t, r.RateToReference(context.Background(), "GBP").Equal(decimal.NewFromInt(1)))
}

func TestRateToReference_CachesPerDay(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, http.StatusOK, `{"result":"success","rates":{"EUR":0.5}}`, &hits)

	day := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := memoryCache{}
	r := NewResolver(Config{BaseURL: srv.URL}, zap.NewNop(),
		WithCache(cache),
		WithClock(func() time.Time { return day }))

	for i := 0; i < 3; i++ {
		assert.Equal(t, "0.5", r.RateToReference(context.Background(), "CHF").String())
	}
	assert.Equal(t, int32(1), hits.Load())

	day = day.Add(24 * time.Hour)
	r.RateToReference(context.Background(), "CHF")
	assert.Equal(t, int32(2), hits.Load())
}
