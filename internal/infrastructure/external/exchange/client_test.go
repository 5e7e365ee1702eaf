package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/USD", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"EUR":0.90,"JPY":147.12}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{
		RatesURL: srv.URL + "/latest/%s",
		APIKey:   "test-key",
	}, zap.NewNop())

	rates, err := client.FetchRates(context.Background(), "usd")
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.True(t, rates["EUR"].Equal(decimal.RequireFromString("0.90")))
	assert.True(t, rates["JPY"].Equal(decimal.RequireFromString("147.12")))
}

func TestFetchRatesBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Config{RatesURL: srv.URL + "/latest/%s"}, zap.NewNop())

	_, err := client.FetchRates(context.Background(), "USD")
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestFetchRatesEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"USD","rates":{}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{RatesURL: srv.URL + "/latest/%s"}, zap.NewNop())

	_, err := client.FetchRates(context.Background(), "USD")
	assert.Error(t, err)
}

func TestFetchCountries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"name":{"common":"Germany"},"currencies":{"EUR":{"name":"Euro"}}},
			{"name":{"common":"Antarctica"},"currencies":{}},
			{"name":{"common":"Cuba"},"currencies":{"CUP":{"name":"Cuban peso"},"CUC":{"name":"Cuban convertible peso"}}}
		]`))
	}))
	defer srv.Close()

	client := NewClient(Config{CountriesURL: srv.URL + "/all"}, zap.NewNop())

	countries, err := client.FetchCountries(context.Background())
	require.NoError(t, err)
	require.Len(t, countries, 2)

	assert.Equal(t, "Germany", countries[0].Name)
	assert.Equal(t, "EUR", countries[0].CurrencyCode)

	// Multi-currency countries pick the first code in sorted order.
	assert.Equal(t, "Cuba", countries[1].Name)
	assert.Equal(t, "CUC", countries[1].CurrencyCode)
}

func TestFetchCountriesBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{CountriesURL: srv.URL + "/all"}, zap.NewNop())

	_, err := client.FetchCountries(context.Background())
	assert.ErrorIs(t, err, ErrBadStatus)
}
