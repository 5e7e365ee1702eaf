package entity

import "time"

// Decision is the tri-state outcome recorded on a ledger entry
type Decision string

const (
	DecisionPending  Decision = "PENDING"
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Resolved returns true once the approver has decided either way
func (d Decision) Resolved() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// ApprovalRequest is one ledger entry: a single approver's pending-or-resolved
// decision for one expense at one step. Entries are never deleted; decisions
// are applied in place.
type ApprovalRequest struct {
	ID         int64      `json:"id"`
	ExpenseID  int64      `json:"expense_id"`
	RuleSetID  int64      `json:"rule_set_id"`
	ApproverID int64      `json:"approver_id"`
	Step       int        `json:"step"`
	Decision   Decision   `json:"decision"`
	Comment    string     `json:"comment,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
