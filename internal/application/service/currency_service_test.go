package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
)

type fakeRateSource struct {
	mu    sync.Mutex
	calls int
	rates map[string]decimal.Decimal
	err   error
}

func (f *fakeRateSource) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rates, nil
}

func (f *fakeRateSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCountrySource struct {
	mu        sync.Mutex
	calls     int
	countries []port.Country
	err       error
}

func (f *fakeCountrySource) FetchCountries(ctx context.Context) ([]port.Country, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.countries, nil
}

// fakeClock steps time manually so TTL expiry is deterministic
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCurrencyService(rates *fakeRateSource, countries *fakeCountrySource, clock *fakeClock) *CurrencyService {
	return NewCurrencyService(rates, countries, zap.NewNop(),
		WithRateTTL(10*time.Minute),
		WithCountryTTL(12*time.Hour),
		WithClock(clock.Now),
	)
}

func TestConvertSameCurrencySkipsCache(t *testing.T) {
	src := &fakeRateSource{err: errors.New("provider down")}
	svc := newTestCurrencyService(src, &fakeCountrySource{}, &fakeClock{now: time.Now()})

	amount := decimal.RequireFromString("123.45")

	// Same currency never touches the rate source, even with no rates loaded.
	got, err := svc.Convert(context.Background(), amount, "USD", "usd")
	require.NoError(t, err)
	assert.True(t, got.Equal(amount), "Convert() = %s, want %s", got, amount)
	assert.Equal(t, 0, src.callCount())
}

func TestConvertUsesFetchedRate(t *testing.T) {
	src := &fakeRateSource{rates: map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.90"),
	}}
	svc := newTestCurrencyService(src, &fakeCountrySource{}, &fakeClock{now: time.Now()})

	got, err := svc.Convert(context.Background(), decimal.RequireFromString("100.00"), "USD", "EUR")
	require.NoError(t, err)

	want := decimal.RequireFromString("90.00")
	assert.True(t, got.Equal(want), "Convert() = %s, want %s", got, want)
}

func TestConvertUnsupportedCurrency(t *testing.T) {
	src := &fakeRateSource{rates: map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.90"),
	}}
	svc := newTestCurrencyService(src, &fakeCountrySource{}, &fakeClock{now: time.Now()})

	_, err := svc.Convert(context.Background(), decimal.NewFromInt(10), "USD", "XXX")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestGetRatesTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	src := &fakeRateSource{rates: map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.90"),
	}}
	svc := newTestCurrencyService(src, &fakeCountrySource{}, clock)
	ctx := context.Background()

	// First call populates the cache.
	_, err := svc.GetRates(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, 1, src.callCount())

	// One second before expiry: cached, no network call.
	clock.Advance(10*time.Minute - time.Second)
	_, err = svc.GetRates(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, 1, src.callCount())

	// Past expiry: exactly one refresh.
	clock.Advance(2 * time.Second)
	_, err = svc.GetRates(ctx, "USD")
	require.NoError(t, err)
	assert.Equal(t, 2, src.callCount())
}

func TestGetRatesNormalizesBase(t *testing.T) {
	src := &fakeRateSource{rates: map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.90"),
	}}
	svc := newTestCurrencyService(src, &fakeCountrySource{}, &fakeClock{now: time.Now()})
	ctx := context.Background()

	_, err := svc.GetRates(ctx, "usd")
	require.NoError(t, err)
	_, err = svc.GetRates(ctx, " USD ")
	require.NoError(t, err)

	// Both spellings hit the same cache entry.
	assert.Equal(t, 1, src.callCount())
}

func TestGetRatesUpstreamFailure(t *testing.T) {
	src := &fakeRateSource{err: errors.New("connection refused")}
	svc := newTestCurrencyService(src, &fakeCountrySource{}, &fakeClock{now: time.Now()})

	_, err := svc.GetRates(context.Background(), "USD")
	assert.ErrorIs(t, err, ErrRatesUnavailable)
}

func TestGetRatesExpiredEntryIsNotServedOnFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	src := &fakeRateSource{rates: map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.90"),
	}}
	svc := newTestCurrencyService(src, &fakeCountrySource{}, clock)
	ctx := context.Background()

	_, err := svc.GetRates(ctx, "USD")
	require.NoError(t, err)

	// Entry expires, provider goes down: hard failure, no stale data.
	clock.Advance(11 * time.Minute)
	src.mu.Lock()
	src.err = errors.New("provider down")
	src.mu.Unlock()

	_, err = svc.GetRates(ctx, "USD")
	assert.ErrorIs(t, err, ErrRatesUnavailable)
}

func TestGetRatesConcurrentMissSharesOneFetch(t *testing.T) {
	src := &fakeRateSource{rates: map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.90"),
	}}
	svc := newTestCurrencyService(src, &fakeCountrySource{}, &fakeClock{now: time.Now()})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetRates(context.Background(), "USD")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, src.callCount())
}

func TestCurrencyForCountry(t *testing.T) {
	countries := &fakeCountrySource{countries: []port.Country{
		{Name: "Germany", CurrencyCode: "EUR", CurrencyName: "Euro"},
		{Name: "Japan", CurrencyCode: "JPY", CurrencyName: "Japanese yen"},
	}}
	svc := newTestCurrencyService(&fakeRateSource{}, countries, &fakeClock{now: time.Now()})
	ctx := context.Background()

	code, err := svc.CurrencyForCountry(ctx, "Germany")
	require.NoError(t, err)
	assert.Equal(t, "EUR", code)

	// Unknown country falls back to USD.
	code, err = svc.CurrencyForCountry(ctx, "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, FallbackCurrency, code)

	// Second lookup served from the 12h cache.
	_, err = svc.CurrencyForCountry(ctx, "Japan")
	require.NoError(t, err)
	countries.mu.Lock()
	calls := countries.calls
	countries.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestCurrencyForCountryUpstreamFailure(t *testing.T) {
	countries := &fakeCountrySource{err: errors.New("timeout")}
	svc := newTestCurrencyService(&fakeRateSource{}, countries, &fakeClock{now: time.Now()})

	_, err := svc.CurrencyForCountry(context.Background(), "Germany")
	assert.ErrorIs(t, err, ErrCountriesUnavailable)
}
