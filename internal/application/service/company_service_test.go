package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/domain/entity"
)

func newTestCompanyService(companies *mockCompanyRepo, users *mockUserRepo, countries *fakeCountrySource) CompanyService {
	currency := newTestCurrencyService(&fakeRateSource{}, countries, &fakeClock{now: time.Now()})
	return NewCompanyService(companies, users, currency, zap.NewNop())
}

func TestCreateCompanyDefaultsCurrencyFromCountry(t *testing.T) {
	countries := &fakeCountrySource{countries: []port.Country{
		{Name: "Germany", CurrencyCode: "EUR", CurrencyName: "Euro"},
	}}
	svc := newTestCompanyService(&mockCompanyRepo{}, &mockUserRepo{}, countries)

	company, err := svc.CreateCompany(context.Background(), "Acme GmbH", "Germany", "")
	require.NoError(t, err)
	assert.Equal(t, "EUR", company.Currency)
}

func TestCreateCompanyUnknownCountryFallsBackToUSD(t *testing.T) {
	svc := newTestCompanyService(&mockCompanyRepo{}, &mockUserRepo{}, &fakeCountrySource{})

	company, err := svc.CreateCompany(context.Background(), "Acme", "Atlantis", "")
	require.NoError(t, err)
	assert.Equal(t, FallbackCurrency, company.Currency)
}

func TestCreateCompanyExplicitCurrencyWins(t *testing.T) {
	countries := &fakeCountrySource{countries: []port.Country{
		{Name: "Germany", CurrencyCode: "EUR", CurrencyName: "Euro"},
	}}
	svc := newTestCompanyService(&mockCompanyRepo{}, &mockUserRepo{}, countries)

	company, err := svc.CreateCompany(context.Background(), "Acme", "Germany", "gbp")
	require.NoError(t, err)
	assert.Equal(t, "GBP", company.Currency)
	assert.Zero(t, countries.calls, "explicit currency should not consult country metadata")
}

func TestCreateUserRejectsInvalidEmail(t *testing.T) {
	svc := newTestCompanyService(&mockCompanyRepo{}, &mockUserRepo{}, &fakeCountrySource{})

	_, err := svc.CreateUser(context.Background(), &entity.User{
		CompanyID: 1,
		Username:  "dana",
		Email:     "not-an-email",
	})
	assert.Error(t, err)
}

func TestCreateUserManagerMustShareCompany(t *testing.T) {
	managerID := int64(7)
	users := &mockUserRepo{
		getByIDFunc: func(_ context.Context, id int64) (*entity.User, error) {
			return &entity.User{ID: id, CompanyID: 2}, nil
		},
	}
	svc := newTestCompanyService(&mockCompanyRepo{}, users, &fakeCountrySource{})

	_, err := svc.CreateUser(context.Background(), &entity.User{
		CompanyID: 1,
		Username:  "dana",
		Email:     "dana@example.com",
		ManagerID: &managerID,
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateUserDefaultsRoleToEmployee(t *testing.T) {
	svc := newTestCompanyService(&mockCompanyRepo{}, &mockUserRepo{}, &fakeCountrySource{})

	user, err := svc.CreateUser(context.Background(), &entity.User{
		CompanyID: 1,
		Username:  "dana",
		Email:     "dana@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleEmployee, user.Role)
}
