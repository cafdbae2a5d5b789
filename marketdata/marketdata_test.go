package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchTopCoins(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":65000.12,"market_cap":1.2e12,"price_change_percentage_24h":2.4},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3200.5,"market_cap":4.0e11,"price_change_percentage_24h":-1.1},
			{"id":"solana","symbol":"sol","name":"Solana","current_price":150.0,"market_cap":7.0e10,"price_change_percentage_24h":5.9}
		]`))
	}))
	defer ts.Close()

	coins, err := NewClient(ts.URL, "", time.Second).FetchTopCoins(context.Background(), 3, "USD")
	require.NoError(t, err)

	require.Len(t, coins, 3)
	assert.Equal(t, "btc", coins[0].Symbol)
	assert.InDelta(t, 65000.12, coins[0].CurrentPrice, 1e-6)
	assert.InDelta(t, -1.1, coins[1].Change24h, 1e-9)
}

func TestFetchTopCoinsZeroEntries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "", time.Second).FetchTopCoins(context.Background(), 5, "usd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero entries")
}

func TestFetchTopCoinsNotASequence(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "", time.Second).FetchTopCoins(context.Background(), 5, "usd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a sequence")
}

func TestFetchTopCoinsUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "", time.Second).FetchTopCoins(context.Background(), 5, "usd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestFetchTopCoinsRejectsNonPositiveLimit(t *testing.T) {
	_, err := NewClient("http://localhost:0", "", time.Second).FetchTopCoins(context.Background(), 0, "usd")
	assert.Error(t, err)
}
