package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/application/workflow"
	"github.com/expenseflow/backend/internal/domain/entity"
)

var (
	// ErrUserNotFound is returned when the submitting employee does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrCompanyNotFound is returned when the user's company does not resolve
	ErrCompanyNotFound = errors.New("company not found")

	// ErrNoActiveRuleSet is returned when the company has no active approval
	// rule set at submission time
	ErrNoActiveRuleSet = errors.New("company has no active approval rule set")

	// ErrInvalidAmount is returned for zero or negative expense amounts
	ErrInvalidAmount = errors.New("amount must be positive")
)

// SubmitExpenseInput carries a new expense submission
type SubmitExpenseInput struct {
	EmployeeID  int64
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Description string
	ExpenseDate time.Time
}

// ExpenseService handles expense submission and history
type ExpenseService interface {
	Submit(ctx context.Context, in SubmitExpenseInput) (*entity.Expense, error)
	Get(ctx context.Context, id int64) (*entity.Expense, error)
	ListByEmployee(ctx context.Context, employeeID int64, limit, offset int) ([]*entity.Expense, error)
}

type expenseServiceImpl struct {
	expenseRepo port.ExpenseRepository
	userRepo    port.UserRepository
	companyRepo port.CompanyRepository
	ruleSetRepo port.RuleSetRepository
	converter   port.CurrencyConverter
	engine      workflow.Engine
	txManager   port.TransactionManager
	logger      *zap.Logger
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(
	expenseRepo port.ExpenseRepository,
	userRepo port.UserRepository,
	companyRepo port.CompanyRepository,
	ruleSetRepo port.RuleSetRepository,
	converter port.CurrencyConverter,
	engine workflow.Engine,
	txManager port.TransactionManager,
	logger *zap.Logger,
) ExpenseService {
	return &expenseServiceImpl{
		expenseRepo: expenseRepo,
		userRepo:    userRepo,
		companyRepo: companyRepo,
		ruleSetRepo: ruleSetRepo,
		converter:   converter,
		engine:      engine,
		txManager:   txManager,
		logger:      logger,
	}
}

// Submit converts the amount into the company currency (a one-time snapshot),
// persists the expense and starts the approval workflow.
func (s *expenseServiceImpl) Submit(ctx context.Context, in SubmitExpenseInput) (*entity.Expense, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	user, err := s.userRepo.GetByID(ctx, in.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, in.EmployeeID)
	}

	company, err := s.companyRepo.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("%w: id %d", ErrCompanyNotFound, user.CompanyID)
	}

	ruleSet, err := s.ruleSetRepo.GetActiveByCompanyID(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("get active rule set: %w", err)
	}
	if ruleSet == nil {
		return nil, fmt.Errorf("%w: company %d", ErrNoActiveRuleSet, company.ID)
	}

	converted, err := s.converter.Convert(ctx, in.Amount, in.Currency, company.Currency)
	if err != nil {
		return nil, err
	}

	expense := &entity.Expense{
		EmployeeID:              user.ID,
		CompanyID:               company.ID,
		Amount:                  in.Amount,
		Currency:                strings.ToUpper(strings.TrimSpace(in.Currency)),
		AmountInCompanyCurrency: converted,
		Category:                in.Category,
		Description:             in.Description,
		Status:                  entity.StatusPending,
		ExpenseDate:             in.ExpenseDate,
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = time.Now()
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.expenseRepo.Create(txCtx, expense); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		return s.engine.StartWorkflow(txCtx, expense, ruleSet)
	})
	if err != nil {
		s.logger.Error("Failed to submit expense",
			zap.Int64("employee_id", in.EmployeeID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Expense submitted",
		zap.Int64("id", expense.ID),
		zap.Int64("employee_id", user.ID),
		zap.String("amount", expense.Amount.String()),
		zap.String("currency", expense.Currency),
		zap.String("converted", expense.AmountInCompanyCurrency.String()),
		zap.String("company_currency", company.Currency))
	return expense, nil
}

// Get retrieves an expense by ID
func (s *expenseServiceImpl) Get(ctx context.Context, id int64) (*entity.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, fmt.Errorf("%w: id %d", workflow.ErrExpenseNotFound, id)
	}
	return expense, nil
}

// ListByEmployee retrieves a page of the employee's expense history
func (s *expenseServiceImpl) ListByEmployee(ctx context.Context, employeeID int64, limit, offset int) ([]*entity.Expense, error) {
	return s.expenseRepo.GetByEmployeeID(ctx, employeeID, limit, offset)
}
