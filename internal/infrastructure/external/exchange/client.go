// Package exchange implements HTTP clients for the external exchange-rate and
// country-metadata providers.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
)

// ErrBadStatus is returned when a provider answers with a non-200 status
var ErrBadStatus = errors.New("provider returned non-OK status")

const defaultTimeout = 10 * time.Second

// Config holds the provider endpoints. RatesURL must contain one %s verb for
// the base currency code.
type Config struct {
	RatesURL     string
	CountriesURL string
	APIKey       string
	Timeout      time.Duration
}

// Client talks to the rate and country providers over HTTPS with a bounded
// timeout; it fails closed rather than hanging the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a provider client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type ratesResponse struct {
	Base  string                 `json:"base"`
	Rates map[string]json.Number `json:"rates"`
}

// FetchRates fetches the rate table for a base currency
func (c *Client) FetchRates(ctx context.Context, baseCurrency string) (map[string]decimal.Decimal, error) {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	endpoint := fmt.Sprintf(c.cfg.RatesURL, url.PathEscape(base))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create rates request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates for %s: %w", base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d fetching rates for %s", ErrBadStatus, resp.StatusCode, base)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload ratesResponse
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rates response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, errors.New("empty exchange rates payload")
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, num := range payload.Rates {
		rate, err := decimal.NewFromString(num.String())
		if err != nil {
			return nil, fmt.Errorf("parse rate for %s: %w", code, err)
		}
		rates[strings.ToUpper(code)] = rate
	}

	c.logger.Debug("Fetched exchange rates",
		zap.String("base", base),
		zap.Int("count", len(rates)))
	return rates, nil
}

// countryRecord mirrors the provider's country object: a common name plus a
// currency map keyed by code
type countryRecord struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Currencies map[string]struct {
		Name string `json:"name"`
	} `json:"currencies"`
}

// FetchCountries fetches the country list with their currencies. Countries
// listing several currencies contribute their first code in sorted order, so
// repeated fetches stay deterministic.
func (c *Client) FetchCountries(ctx context.Context) ([]port.Country, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.CountriesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create countries request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch countries: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d fetching countries", ErrBadStatus, resp.StatusCode)
	}

	var records []countryRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode countries response: %w", err)
	}

	countries := make([]port.Country, 0, len(records))
	for _, rec := range records {
		if len(rec.Currencies) == 0 {
			continue
		}
		codes := make([]string, 0, len(rec.Currencies))
		for code := range rec.Currencies {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		code := codes[0]
		countries = append(countries, port.Country{
			Name:         rec.Name.Common,
			CurrencyCode: strings.ToUpper(code),
			CurrencyName: rec.Currencies[code].Name,
		})
	}

	c.logger.Debug("Fetched country metadata", zap.Int("count", len(countries)))
	return countries, nil
}

// Verify interface compliance
var (
	_ port.RateSource    = (*Client)(nil)
	_ port.CountrySource = (*Client)(nil)
)
