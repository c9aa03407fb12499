package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var ErrRateUnavailable = errors.New("rate not available")

// staticRates is the fixed demo table used by the /currency/convert endpoint.
var staticRates = map[string]map[string]float64{
	"RSD": {"EUR": 0.0085, "USD": 0.0092, "GBP": 0.0073},
	"EUR": {"RSD": 117.65, "USD": 1.08, "GBP": 0.86},
	"USD": {"RSD": 108.70, "EUR": 0.93, "GBP": 0.79},
	"GBP": {"RSD": 136.99, "EUR": 1.16, "USD": 1.27},
}

// ConvertStatic converts amount using the static table.
func ConvertStatic(amount decimal.Decimal, from, to string) (float64, decimal.Decimal, error) {
	rate, ok := staticRates[strings.ToUpper(from)][strings.ToUpper(to)]
	if !ok {
		return 0, decimal.Zero, ErrRateUnavailable
	}
	converted := amount.Mul(decimal.NewFromFloat(rate)).Round(2)
	return rate, converted, nil
}

// Source resolves a live exchange rate for a currency pair.
type Source interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// HTTPSource queries an exchangerate.host compatible API.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (s *HTTPSource) Rate(ctx context.Context, from, to string) (float64, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	q := url.Values{}
	q.Set("base", from)
	q.Set("symbols", to)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	res, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("currency: rate request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("currency: rate request failed: %s", res.Status)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, err
	}
	rate, ok := body.Rates[to]
	if !ok {
		return 0, ErrRateUnavailable
	}
	return rate, nil
}

// CachedSource wraps a Source with a redis read-through cache. With no redis
// client every call goes straight to the source.
type CachedSource struct {
	Source Source
	Redis  *redis.Client
	TTL    time.Duration
}

func (s *CachedSource) Rate(ctx context.Context, from, to string) (float64, error) {
	key := fmt.Sprintf("rate:%s:%s", from, to)

	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, key).Float64(); err == nil {
			return cached, nil
		}
	}

	rate, err := s.Source.Rate(ctx, from, to)
	if err != nil {
		return 0, err
	}

	if s.Redis != nil {
		s.Redis.Set(ctx, key, rate, s.TTL)
	}
	return rate, nil
}
