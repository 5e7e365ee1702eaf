package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseStatus represents the lifecycle state of an expense
type ExpenseStatus string

const (
	StatusPending  ExpenseStatus = "PENDING"
	StatusApproved ExpenseStatus = "APPROVED"
	StatusRejected ExpenseStatus = "REJECTED"
)

var terminalStatuses = map[ExpenseStatus]bool{
	StatusApproved: true,
	StatusRejected: true,
}

// IsTerminal returns true if no further status transitions are allowed
func (s ExpenseStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// String returns the string representation of the status
func (s ExpenseStatus) String() string {
	return string(s)
}

// Expense represents a submitted expense awaiting or past approval.
// AmountInCompanyCurrency is a conversion snapshot taken at submission time
// and is never recomputed afterwards. Status is mutated only by the workflow
// engine.
type Expense struct {
	ID                      int64           `json:"id"`
	EmployeeID              int64           `json:"employee_id"`
	CompanyID               int64           `json:"company_id"`
	Amount                  decimal.Decimal `json:"amount"`
	Currency                string          `json:"currency"`
	AmountInCompanyCurrency decimal.Decimal `json:"amount_in_company_currency"`
	Category                string          `json:"category"`
	Description             string          `json:"description"`
	Status                  ExpenseStatus   `json:"status"`
	ExpenseDate             time.Time       `json:"expense_date"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}
