package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestConvertStatic(t *testing.T) {
	rate, converted, err := ConvertStatic(decimal.RequireFromString("1000"), "RSD", "EUR")
	require.NoError(t, err)
	require.Equal(t, 0.0085, rate)
	require.True(t, converted.Equal(decimal.RequireFromString("8.50")), "got %s", converted)

	// codes are case-insensitive
	_, _, err = ConvertStatic(decimal.NewFromInt(1), "eur", "usd")
	require.NoError(t, err)

	_, _, err = ConvertStatic(decimal.NewFromInt(1), "RSD", "JPY")
	require.ErrorIs(t, err, ErrRateUnavailable)
}

func TestHTTPSourceRate(t *testing.T) {
	var gotBase, gotSymbols string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/latest", r.URL.Path)
		gotBase = r.URL.Query().Get("base")
		gotSymbols = r.URL.Query().Get("symbols")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"RSD","rates":{"EUR":0.00852}}`))
	}))
	defer srv.Close()

	src := &HTTPSource{BaseURL: srv.URL}
	rate, err := src.Rate(context.Background(), "RSD", "EUR")
	require.NoError(t, err)
	require.Equal(t, 0.00852, rate)
	require.Equal(t, "RSD", gotBase)
	require.Equal(t, "EUR", gotSymbols)

	// symbol missing from the response
	_, err = src.Rate(context.Background(), "RSD", "JPY")
	require.ErrorIs(t, err, ErrRateUnavailable)
}

func TestHTTPSourceRateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := &HTTPSource{BaseURL: srv.URL}
	_, err := src.Rate(context.Background(), "RSD", "EUR")
	require.Error(t, err)
}

type stubSource struct {
	calls int
	rate  float64
}

func (s *stubSource) Rate(ctx context.Context, from, to string) (float64, error) {
	s.calls++
	return s.rate, nil
}

func TestCachedSourceWithoutRedis(t *testing.T) {
	stub := &stubSource{rate: 1.08}
	cached := &CachedSource{Source: stub}

	rate, err := cached.Rate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	require.Equal(t, 1.08, rate)

	// no redis client means every call hits the source
	_, err = cached.Rate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	require.Equal(t, 2, stub.calls)
}
