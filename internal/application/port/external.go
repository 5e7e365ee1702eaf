package port

import (
	"context"

	"github.com/expenseflow/backend/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// RateSource fetches exchange rates from an external provider. The returned
// map is keyed by target currency code, each rate relative to one unit of
// the base currency.
type RateSource interface {
	FetchRates(ctx context.Context, baseCurrency string) (map[string]decimal.Decimal, error)
}

// Country is one entry of the country metadata endpoint
type Country struct {
	Name         string `json:"name"`
	CurrencyCode string `json:"currency_code"`
	CurrencyName string `json:"currency_name"`
}

// CountrySource fetches country to currency metadata from an external provider
type CountrySource interface {
	FetchCountries(ctx context.Context) ([]Country, error)
}

// CurrencyConverter converts an amount between currencies using cached rates
type CurrencyConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, fromCurrency, toCurrency string) (decimal.Decimal, error)
}

// DecisionNotification describes a workflow outcome handed to the notifier
type DecisionNotification struct {
	ExpenseID  int64
	EmployeeID int64
	ApproverID int64
	Status     entity.ExpenseStatus
	Comment    string
}

// Notifier delivers workflow outcomes to interested parties. Implementations
// must not block the caller; delivery is best effort and a failure never
// affects the workflow result.
type Notifier interface {
	NotifyDecision(n DecisionNotification)
}
