package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mverih/tezga/internal/currency"
)

type stubRates struct {
	rate float64
	err  error
}

func (s *stubRates) Rate(ctx context.Context, from, to string) (float64, error) {
	return s.rate, s.err
}

func TestCurrencyConvert(t *testing.T) {
	env := newTestEnv(t)
	h := &CurrencyHandler{}

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/currency/convert?amount=1000&from=RSD&to=EUR", nil)
	require.NoError(t, h.Convert(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Rate      float64 `json:"rate"`
		Converted string  `json:"converted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 0.0085, resp.Rate)
	require.Equal(t, "8.5", resp.Converted)

	_, cBad := env.doJSONRequest(http.MethodGet, "/api/v1/currency/convert?amount=abc&from=RSD&to=EUR", nil)
	he := httpError(t, h.Convert(cBad))
	require.Equal(t, http.StatusBadRequest, he.Code)

	_, cCode := env.doJSONRequest(http.MethodGet, "/api/v1/currency/convert?amount=10&from=RSDX&to=EUR", nil)
	he = httpError(t, h.Convert(cCode))
	require.Equal(t, http.StatusBadRequest, he.Code)

	_, cUnknown := env.doJSONRequest(http.MethodGet, "/api/v1/currency/convert?amount=10&from=RSD&to=JPY", nil)
	he = httpError(t, h.Convert(cUnknown))
	require.Equal(t, http.StatusUnprocessableEntity, he.Code)
}

func TestCurrencyRate(t *testing.T) {
	env := newTestEnv(t)
	h := &CurrencyHandler{Rates: &stubRates{rate: 0.0086}}

	// defaults to RSD -> EUR
	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/currency/rate", nil)
	require.NoError(t, h.Rate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "RSD", resp["from"])
	require.Equal(t, "EUR", resp["to"])
	require.Equal(t, 0.0086, resp["rate"])

	h.Rates = &stubRates{err: currency.ErrRateUnavailable}
	_, cMissing := env.doJSONRequest(http.MethodGet, "/api/v1/currency/rate?from=RSD&to=XXX", nil)
	he := httpError(t, h.Rate(cMissing))
	require.Equal(t, http.StatusUnprocessableEntity, he.Code)

	h.Rates = &stubRates{err: errors.New("connection refused")}
	_, cDown := env.doJSONRequest(http.MethodGet, "/api/v1/currency/rate", nil)
	he = httpError(t, h.Rate(cDown))
	require.Equal(t, http.StatusInternalServerError, he.Code)
}
