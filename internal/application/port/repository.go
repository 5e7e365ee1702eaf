package port

import (
	"context"
	"time"

	"github.com/expenseflow/backend/internal/domain/entity"
)

// CompanyRepository defines persistence operations for Company
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id int64) (*entity.Company, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*entity.User, error)
	GetByCompanyID(ctx context.Context, companyID int64) ([]*entity.User, error)
}

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id int64) (*entity.Expense, error)
	GetByEmployeeID(ctx context.Context, employeeID int64, limit, offset int) ([]*entity.Expense, error)
	UpdateStatus(ctx context.Context, id int64, status entity.ExpenseStatus) error
}

// RuleSetRepository defines persistence operations for ApprovalRuleSet.
// Rows are versioned: Activate inserts nothing, it only flips the active flag
// to the given row after clearing the company's previous one. Payloads are
// never updated in place so in-flight ledgers keep their snapshot.
type RuleSetRepository interface {
	Create(ctx context.Context, ruleSet *entity.ApprovalRuleSet) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalRuleSet, error)
	GetActiveByCompanyID(ctx context.Context, companyID int64) (*entity.ApprovalRuleSet, error)
	Activate(ctx context.Context, companyID, ruleSetID int64) error
}

// ApprovalRequestRepository defines persistence operations for ledger entries
type ApprovalRequestRepository interface {
	CreateBatch(ctx context.Context, entries []*entity.ApprovalRequest) error
	GetByExpenseID(ctx context.Context, expenseID int64) ([]*entity.ApprovalRequest, error)
	GetPendingByExpenseAndApprover(ctx context.Context, expenseID, approverID int64) (*entity.ApprovalRequest, error)
	GetPendingByApprover(ctx context.Context, approverID int64) ([]*entity.ApprovalRequest, error)
	ApplyDecision(ctx context.Context, id int64, decision entity.Decision, comment string, decidedAt time.Time) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
