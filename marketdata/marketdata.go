// Package marketdata fetches the top market entries the analysis is built on.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public CoinGecko API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Coin is one market entry as returned by the markets endpoint.
type Coin struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"current_price"`
	MarketCap    float64 `json:"market_cap"`
	Change24h    float64 `json:"price_change_percentage_24h"`
}

// Client talks to a CoinGecko-compatible markets API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchTopCoins returns the top entries by market cap in the given quote
// currency. Fails with a described error when the upstream returns no
// entries or something that is not a sequence.
func (c *Client) FetchTopCoins(ctx context.Context, limit int, currency string) ([]Coin, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("market data: limit must be positive")
	}
	if currency == "" {
		currency = "usd"
	}

	q := url.Values{}
	q.Set("vs_currency", strings.ToLower(currency))
	q.Set("order", "market_cap_desc")
	q.Set("per_page", fmt.Sprintf("%d", limit))
	q.Set("page", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/coins/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market data request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("market data read failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market data returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var coins []Coin
	if err := json.Unmarshal(data, &coins); err != nil {
		return nil, fmt.Errorf("market data response is not a sequence: %w", err)
	}

	if len(coins) == 0 {
		return nil, fmt.Errorf("market data returned zero entries for currency %q", currency)
	}

	return coins, nil
}
