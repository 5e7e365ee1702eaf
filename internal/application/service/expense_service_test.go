package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/domain/entity"
)

// Mock repositories in the function-field style

type mockExpenseRepo struct {
	createFunc       func(ctx context.Context, expense *entity.Expense) error
	getByIDFunc      func(ctx context.Context, id int64) (*entity.Expense, error)
	updateStatusFunc func(ctx context.Context, id int64, status entity.ExpenseStatus) error
}

func (m *mockExpenseRepo) Create(ctx context.Context, expense *entity.Expense) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, expense)
	}
	expense.ID = 1
	return nil
}

func (m *mockExpenseRepo) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Expense{ID: id, Status: entity.StatusPending}, nil
}

func (m *mockExpenseRepo) GetByEmployeeID(ctx context.Context, employeeID int64, limit, offset int) ([]*entity.Expense, error) {
	return []*entity.Expense{}, nil
}

func (m *mockExpenseRepo) UpdateStatus(ctx context.Context, id int64, status entity.ExpenseStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

type mockUserRepo struct {
	getByIDFunc  func(ctx context.Context, id int64) (*entity.User, error)
	getByIDsFunc func(ctx context.Context, ids []int64) ([]*entity.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error { return nil }

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.User{ID: id, CompanyID: 1, Role: entity.RoleEmployee}, nil
}

func (m *mockUserRepo) GetByIDs(ctx context.Context, ids []int64) ([]*entity.User, error) {
	if m.getByIDsFunc != nil {
		return m.getByIDsFunc(ctx, ids)
	}
	users := make([]*entity.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, &entity.User{ID: id, CompanyID: 1})
	}
	return users, nil
}

func (m *mockUserRepo) GetByCompanyID(ctx context.Context, companyID int64) ([]*entity.User, error) {
	return []*entity.User{}, nil
}

type mockCompanyRepo struct {
	getByIDFunc func(ctx context.Context, id int64) (*entity.Company, error)
}

func (m *mockCompanyRepo) Create(ctx context.Context, company *entity.Company) error {
	company.ID = 1
	return nil
}

func (m *mockCompanyRepo) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return &entity.Company{ID: id, Name: "Acme", Currency: "EUR"}, nil
}

type mockRuleSetRepo struct {
	getActiveFunc func(ctx context.Context, companyID int64) (*entity.ApprovalRuleSet, error)
	createFunc    func(ctx context.Context, rs *entity.ApprovalRuleSet) error
	activateFunc  func(ctx context.Context, companyID, ruleSetID int64) error
}

func (m *mockRuleSetRepo) Create(ctx context.Context, rs *entity.ApprovalRuleSet) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, rs)
	}
	rs.ID = 10
	return nil
}

func (m *mockRuleSetRepo) GetByID(ctx context.Context, id int64) (*entity.ApprovalRuleSet, error) {
	return &entity.ApprovalRuleSet{ID: id, CompanyID: 1, Mode: entity.ModeSequential,
		Steps: []entity.ApprovalStep{{ApproverIDs: []int64{2}}}}, nil
}

func (m *mockRuleSetRepo) GetActiveByCompanyID(ctx context.Context, companyID int64) (*entity.ApprovalRuleSet, error) {
	if m.getActiveFunc != nil {
		return m.getActiveFunc(ctx, companyID)
	}
	return &entity.ApprovalRuleSet{ID: 10, CompanyID: companyID, Mode: entity.ModeSequential,
		Steps: []entity.ApprovalStep{{ApproverIDs: []int64{2}}}, Active: true}, nil
}

func (m *mockRuleSetRepo) Activate(ctx context.Context, companyID, ruleSetID int64) error {
	if m.activateFunc != nil {
		return m.activateFunc(ctx, companyID, ruleSetID)
	}
	return nil
}

type mockConverter struct {
	convertFunc func(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

func (m *mockConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if m.convertFunc != nil {
		return m.convertFunc(ctx, amount, from, to)
	}
	return amount, nil
}

type mockEngine struct {
	startFunc  func(ctx context.Context, expense *entity.Expense, rs *entity.ApprovalRuleSet) error
	recordFunc func(ctx context.Context, expenseID, approverID int64, approved bool, comment string) (entity.ExpenseStatus, error)
}

func (m *mockEngine) StartWorkflow(ctx context.Context, expense *entity.Expense, rs *entity.ApprovalRuleSet) error {
	if m.startFunc != nil {
		return m.startFunc(ctx, expense, rs)
	}
	return nil
}

func (m *mockEngine) RecordDecision(ctx context.Context, expenseID, approverID int64, approved bool, comment string) (entity.ExpenseStatus, error) {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, expenseID, approverID, approved, comment)
	}
	return entity.StatusPending, nil
}

type noopTx struct{}

func (noopTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestSubmitExpenseConvertsIntoCompanyCurrency(t *testing.T) {
	converter := &mockConverter{
		convertFunc: func(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
			assert.Equal(t, "USD", from)
			assert.Equal(t, "EUR", to)
			return amount.Mul(decimal.RequireFromString("0.90")), nil
		},
	}
	var started *entity.Expense
	engine := &mockEngine{
		startFunc: func(ctx context.Context, expense *entity.Expense, rs *entity.ApprovalRuleSet) error {
			started = expense
			return nil
		},
	}
	svc := NewExpenseService(&mockExpenseRepo{}, &mockUserRepo{}, &mockCompanyRepo{},
		&mockRuleSetRepo{}, converter, engine, noopTx{}, zap.NewNop())

	expense, err := svc.Submit(context.Background(), SubmitExpenseInput{
		EmployeeID:  7,
		Amount:      decimal.RequireFromString("100.00"),
		Currency:    "USD",
		Category:    "travel",
		ExpenseDate: time.Now(),
	})
	require.NoError(t, err)

	want := decimal.RequireFromString("90.00")
	assert.True(t, expense.AmountInCompanyCurrency.Equal(want),
		"converted = %s, want %s", expense.AmountInCompanyCurrency, want)
	assert.Equal(t, entity.StatusPending, expense.Status)
	require.NotNil(t, started, "workflow should be started")
	assert.Equal(t, expense.ID, started.ID)
}

func TestSubmitExpenseRequiresActiveRuleSet(t *testing.T) {
	ruleSets := &mockRuleSetRepo{
		getActiveFunc: func(ctx context.Context, companyID int64) (*entity.ApprovalRuleSet, error) {
			return nil, nil
		},
	}
	svc := NewExpenseService(&mockExpenseRepo{}, &mockUserRepo{}, &mockCompanyRepo{},
		ruleSets, &mockConverter{}, &mockEngine{}, noopTx{}, zap.NewNop())

	_, err := svc.Submit(context.Background(), SubmitExpenseInput{
		EmployeeID: 7,
		Amount:     decimal.NewFromInt(10),
		Currency:   "USD",
	})
	assert.ErrorIs(t, err, ErrNoActiveRuleSet)
}

func TestSubmitExpenseRejectsNonPositiveAmount(t *testing.T) {
	svc := NewExpenseService(&mockExpenseRepo{}, &mockUserRepo{}, &mockCompanyRepo{},
		&mockRuleSetRepo{}, &mockConverter{}, &mockEngine{}, noopTx{}, zap.NewNop())

	_, err := svc.Submit(context.Background(), SubmitExpenseInput{
		EmployeeID: 7,
		Amount:     decimal.Zero,
		Currency:   "USD",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSubmitExpenseUnknownEmployee(t *testing.T) {
	users := &mockUserRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.User, error) {
			return nil, nil
		},
	}
	svc := NewExpenseService(&mockExpenseRepo{}, users, &mockCompanyRepo{},
		&mockRuleSetRepo{}, &mockConverter{}, &mockEngine{}, noopTx{}, zap.NewNop())

	_, err := svc.Submit(context.Background(), SubmitExpenseInput{
		EmployeeID: 99,
		Amount:     decimal.NewFromInt(10),
		Currency:   "USD",
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
