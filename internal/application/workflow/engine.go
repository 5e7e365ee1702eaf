package workflow

import (
	"context"
	"errors"

	"github.com/expenseflow/backend/internal/domain/entity"
)

var (
	// ErrExpenseNotFound is returned when a decision references an unknown expense
	ErrExpenseNotFound = errors.New("expense not found")

	// ErrRuleSetNotFound is returned when a ledger entry references a rule set
	// that no longer resolves
	ErrRuleSetNotFound = errors.New("rule set not found")

	// ErrNoPendingApproval is returned when the approver has no pending ledger
	// entry at the current step: deciding out of turn, twice, or for an
	// expense they are not assigned to. The expense state is left untouched.
	ErrNoPendingApproval = errors.New("no pending approval for this approver")
)

// Engine orchestrates ledger creation at submission time and re-evaluates the
// ledger after every decision.
type Engine interface {
	// StartWorkflow materializes the initial reachable ledger entries for the
	// expense per the rule set's mode. The expense status is left PENDING
	// except for the degenerate auto-satisfied rule set, which must not hang.
	StartWorkflow(ctx context.Context, expense *entity.Expense, ruleSet *entity.ApprovalRuleSet) error

	// RecordDecision applies one approver's decision, re-evaluates the ledger
	// and returns the resulting expense status. Once an expense is terminal
	// further calls are idempotent no-ops returning the settled status.
	RecordDecision(ctx context.Context, expenseID, approverID int64, approved bool, comment string) (entity.ExpenseStatus, error)
}
