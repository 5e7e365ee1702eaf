package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
)

var (
	// ErrUnsupportedCurrency is returned when the target currency is missing
	// from the fetched rate table. Never silently falls back to a 1:1 rate.
	ErrUnsupportedCurrency = errors.New("unsupported currency pair")

	// ErrRatesUnavailable is returned when the rate provider cannot be
	// reached and no unexpired cached entry exists
	ErrRatesUnavailable = errors.New("exchange rates unavailable")

	// ErrCountriesUnavailable is returned when the country metadata provider
	// cannot be reached and the cache is expired
	ErrCountriesUnavailable = errors.New("country metadata unavailable")
)

const (
	defaultRateTTL    = 10 * time.Minute
	defaultCountryTTL = 12 * time.Hour

	// FallbackCurrency is used when a country has no known currency mapping
	FallbackCurrency = "USD"
)

type rateEntry struct {
	rates     map[string]decimal.Decimal
	expiresAt time.Time
}

type countryEntry struct {
	byName    map[string]port.Country
	expiresAt time.Time
}

// refreshCall lets concurrent cache misses share one upstream fetch
type refreshCall struct {
	done chan struct{}
	err  error
}

// CurrencyService owns the process-wide rate and country caches and the
// converter built on top of them. Entries are replaced atomically as a whole;
// logically-expired data is never served.
type CurrencyService struct {
	rateSource    port.RateSource
	countrySource port.CountrySource
	logger        *zap.Logger

	rateTTL    time.Duration
	countryTTL time.Duration
	now        func() time.Time

	mu            sync.RWMutex
	rateCache     map[string]rateEntry
	rateFlight    map[string]*refreshCall
	countryCache  *countryEntry
	countryFlight *refreshCall
}

// CurrencyOption configures the currency service
type CurrencyOption func(*CurrencyService)

// WithRateTTL overrides the exchange-rate cache TTL
func WithRateTTL(ttl time.Duration) CurrencyOption {
	return func(s *CurrencyService) {
		s.rateTTL = ttl
	}
}

// WithCountryTTL overrides the country metadata cache TTL
func WithCountryTTL(ttl time.Duration) CurrencyOption {
	return func(s *CurrencyService) {
		s.countryTTL = ttl
	}
}

// WithClock overrides the time source, used by tests to step the TTL
func WithClock(now func() time.Time) CurrencyOption {
	return func(s *CurrencyService) {
		s.now = now
	}
}

// NewCurrencyService creates a currency service backed by the given sources
func NewCurrencyService(
	rateSource port.RateSource,
	countrySource port.CountrySource,
	logger *zap.Logger,
	opts ...CurrencyOption,
) *CurrencyService {
	s := &CurrencyService{
		rateSource:    rateSource,
		countrySource: countrySource,
		logger:        logger,
		rateTTL:       defaultRateTTL,
		countryTTL:    defaultCountryTTL,
		now:           time.Now,
		rateCache:     make(map[string]rateEntry),
		rateFlight:    make(map[string]*refreshCall),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetRates returns the rate table for a base currency, refreshing from the
// provider on miss or expiry. Concurrent misses for the same base share a
// single upstream fetch; the last successful fetch wins the cache slot.
func (s *CurrencyService) GetRates(ctx context.Context, baseCurrency string) (map[string]decimal.Decimal, error) {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))

	s.mu.RLock()
	entry, ok := s.rateCache[base]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expiresAt) {
		return entry.rates, nil
	}

	s.mu.Lock()
	// Re-check under write lock in case another goroutine refreshed it.
	entry, ok = s.rateCache[base]
	if ok && s.now().Before(entry.expiresAt) {
		s.mu.Unlock()
		return entry.rates, nil
	}

	if call, waiting := s.rateFlight[base]; waiting {
		s.mu.Unlock()
		return s.waitForRates(ctx, base, call)
	}

	call := &refreshCall{done: make(chan struct{})}
	s.rateFlight[base] = call
	s.mu.Unlock()

	// Detach the fetch from any single caller's deadline so one impatient
	// caller cannot fail every waiter sharing the refresh.
	go s.refreshRates(context.WithoutCancel(ctx), base, call)
	return s.waitForRates(ctx, base, call)
}

func (s *CurrencyService) refreshRates(ctx context.Context, base string, call *refreshCall) {
	rates, err := s.rateSource.FetchRates(ctx, base)
	if err == nil && len(rates) == 0 {
		err = errors.New("empty exchange rates payload")
	}

	s.mu.Lock()
	if err == nil {
		s.rateCache[base] = rateEntry{rates: rates, expiresAt: s.now().Add(s.rateTTL)}
	} else {
		s.logger.Error("Failed to refresh exchange rates",
			zap.String("base", base),
			zap.Error(err))
		call.err = fmt.Errorf("%w: base %s: %v", ErrRatesUnavailable, base, err)
	}
	delete(s.rateFlight, base)
	close(call.done)
	s.mu.Unlock()
}

func (s *CurrencyService) waitForRates(ctx context.Context, base string, call *refreshCall) (map[string]decimal.Decimal, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
		if call.err != nil {
			return nil, call.err
		}
		s.mu.RLock()
		entry := s.rateCache[base]
		s.mu.RUnlock()
		return entry.rates, nil
	}
}

// Convert converts an amount between currencies. Same-currency conversions
// return the amount unchanged without touching the cache. No rounding is
// applied; precision policy belongs to the caller.
func (s *CurrencyService) Convert(ctx context.Context, amount decimal.Decimal, fromCurrency, toCurrency string) (decimal.Decimal, error) {
	if strings.EqualFold(strings.TrimSpace(fromCurrency), strings.TrimSpace(toCurrency)) {
		return amount, nil
	}

	rates, err := s.GetRates(ctx, fromCurrency)
	if err != nil {
		return decimal.Decimal{}, err
	}

	target := strings.ToUpper(strings.TrimSpace(toCurrency))
	rate, ok := rates[target]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s to %s", ErrUnsupportedCurrency,
			strings.ToUpper(strings.TrimSpace(fromCurrency)), target)
	}

	return amount.Mul(rate), nil
}

// Countries returns the country to currency metadata, refreshing on expiry
func (s *CurrencyService) Countries(ctx context.Context) (map[string]port.Country, error) {
	s.mu.RLock()
	cached := s.countryCache
	s.mu.RUnlock()
	if cached != nil && s.now().Before(cached.expiresAt) {
		return cached.byName, nil
	}

	s.mu.Lock()
	cached = s.countryCache
	if cached != nil && s.now().Before(cached.expiresAt) {
		s.mu.Unlock()
		return cached.byName, nil
	}

	if call := s.countryFlight; call != nil {
		s.mu.Unlock()
		return s.waitForCountries(ctx, call)
	}

	call := &refreshCall{done: make(chan struct{})}
	s.countryFlight = call
	s.mu.Unlock()

	go s.refreshCountries(context.WithoutCancel(ctx), call)
	return s.waitForCountries(ctx, call)
}

func (s *CurrencyService) refreshCountries(ctx context.Context, call *refreshCall) {
	countries, err := s.countrySource.FetchCountries(ctx)

	s.mu.Lock()
	if err == nil {
		byName := make(map[string]port.Country, len(countries))
		for _, c := range countries {
			if c.CurrencyCode == "" {
				continue
			}
			byName[c.Name] = c
		}
		s.countryCache = &countryEntry{byName: byName, expiresAt: s.now().Add(s.countryTTL)}
		s.logger.Info("Country metadata cached", zap.Int("entries", len(byName)))
	} else {
		s.logger.Error("Failed to refresh country metadata", zap.Error(err))
		call.err = fmt.Errorf("%w: %v", ErrCountriesUnavailable, err)
	}
	s.countryFlight = nil
	close(call.done)
	s.mu.Unlock()
}

func (s *CurrencyService) waitForCountries(ctx context.Context, call *refreshCall) (map[string]port.Country, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
		if call.err != nil {
			return nil, call.err
		}
		s.mu.RLock()
		cached := s.countryCache
		s.mu.RUnlock()
		return cached.byName, nil
	}
}

// CurrencyForCountry returns the currency code for a country name, falling
// back to USD when the country is unknown.
func (s *CurrencyService) CurrencyForCountry(ctx context.Context, countryName string) (string, error) {
	countries, err := s.Countries(ctx)
	if err != nil {
		return "", err
	}
	entry, ok := countries[countryName]
	if !ok {
		return FallbackCurrency, nil
	}
	return entry.CurrencyCode, nil
}

// WarmUp prefetches the country cache and the rate tables for the given base
// currencies. Failures are logged, never fatal.
func (s *CurrencyService) WarmUp(ctx context.Context, baseCurrencies ...string) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.Countries(ctx); err != nil {
			s.logger.Warn("Country cache warm-up failed", zap.Error(err))
		}
	}()

	for _, base := range baseCurrencies {
		wg.Add(1)
		go func(base string) {
			defer wg.Done()
			if _, err := s.GetRates(ctx, base); err != nil {
				s.logger.Warn("Rate cache warm-up failed",
					zap.String("base", base),
					zap.Error(err))
			}
		}(base)
	}

	wg.Wait()
	s.logger.Info("Currency caches warmed", zap.Strings("bases", baseCurrencies))
}

// Verify interface compliance
var _ port.CurrencyConverter = (*CurrencyService)(nil)
