package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const countriesCacheKey = "countries:min"

type Country struct {
	Name       string   `json:"name"`
	Code       string   `json:"code"`
	Currencies []string `json:"currencies"`
}

// CountriesClient fetches the country/currency reference list, cached in
// redis for a day.
type CountriesClient struct {
	BaseURL string
	Client  *http.Client
	Redis   *redis.Client
	TTL     time.Duration
}

func (c *CountriesClient) List(ctx context.Context) ([]Country, error) {
	if c.Redis != nil {
		if cached, err := c.Redis.Get(ctx, countriesCacheKey).Bytes(); err == nil {
			var countries []Country
			if err := json.Unmarshal(cached, &countries); err == nil {
				return countries, nil
			}
		}
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v3.1/all?fields=name,cca2,currencies", nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("currency: countries request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("currency: countries request failed: %s", res.Status)
	}

	var raw []struct {
		Name struct {
			Common string `json:"common"`
		} `json:"name"`
		CCA2       string                     `json:"cca2"`
		Currencies map[string]json.RawMessage `json:"currencies"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, err
	}

	countries := make([]Country, 0, len(raw))
	for _, r := range raw {
		codes := make([]string, 0, len(r.Currencies))
		for code := range r.Currencies {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		countries = append(countries, Country{
			Name:       r.Name.Common,
			Code:       r.CCA2,
			Currencies: codes,
		})
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].Name < countries[j].Name })

	if c.Redis != nil {
		if data, err := json.Marshal(countries); err == nil {
			c.Redis.Set(ctx, countriesCacheKey, data, c.TTL)
		}
	}
	return countries, nil
}
