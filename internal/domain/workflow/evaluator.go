package workflow

import (
	"fmt"

	"github.com/expenseflow/backend/internal/domain/entity"
)

// Outcome is the result of evaluating a ledger against its rule set.
// At most one of Satisfied and Rejected is set. NextStep is non-zero when the
// engine should materialize ledger entries for that step and keep waiting.
type Outcome struct {
	Satisfied bool
	Rejected  bool
	NextStep  int
}

// Evaluate runs the rule set's state machine over the expense's ledger
// entries. It is pure: no I/O, no mutation of its inputs.
func Evaluate(rs *entity.ApprovalRuleSet, entries []*entity.ApprovalRequest) (Outcome, error) {
	switch rs.Mode {
	case entity.ModeSequential:
		return evaluateSequential(rs, entries), nil
	case entity.ModeConditional:
		return evaluateConditional(rs, entries), nil
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownRuleMode, rs.Mode)
	}
}

// evaluateSequential walks steps in order. Only the lowest unresolved step is
// considered; a single rejection there terminates the workflow, and later
// steps stay unmaterialized until every entry at the current step approves.
func evaluateSequential(rs *entity.ApprovalRuleSet, entries []*entity.ApprovalRequest) Outcome {
	byStep := make(map[int][]*entity.ApprovalRequest)
	for _, e := range entries {
		byStep[e.Step] = append(byStep[e.Step], e)
	}

	for step := 1; step <= rs.StepCount(); step++ {
		required := rs.StepApprovers(step)
		if len(required) == 0 {
			// Degenerate step; validation forbids these, but never hang on one.
			continue
		}

		stepEntries := byStep[step]
		if len(stepEntries) == 0 {
			// Reached a step that has not been materialized yet.
			return Outcome{NextStep: step}
		}

		pending := false
		for _, e := range stepEntries {
			switch e.Decision {
			case entity.DecisionRejected:
				return Outcome{Rejected: true}
			case entity.DecisionPending:
				pending = true
			}
		}
		if pending || len(stepEntries) < len(required) {
			// Still waiting on this step.
			return Outcome{}
		}
	}

	return Outcome{Satisfied: true}
}

// evaluateConditional counts approvals against the percentage threshold over
// the full approver pool. Rejections stay in the denominator: once the
// approvers still able to say yes cannot reach the threshold, the expense is
// rejected early rather than left undecidable.
func evaluateConditional(rs *entity.ApprovalRuleSet, entries []*entity.ApprovalRequest) Outcome {
	total := len(rs.ApproverIDs)
	if total == 0 {
		return Outcome{Satisfied: true}
	}
	if len(entries) == 0 {
		return Outcome{NextStep: 1}
	}

	approved, pending := 0, 0
	for _, e := range entries {
		switch e.Decision {
		case entity.DecisionApproved:
			approved++
		case entity.DecisionPending:
			pending++
		}
	}

	needed := rs.Threshold / 100 * float64(total)
	if float64(approved) >= needed {
		return Outcome{Satisfied: true}
	}
	if float64(approved+pending) < needed {
		return Outcome{Rejected: true}
	}
	return Outcome{}
}

// ValidateRuleSet checks the structural shape of a rule set. Eligibility of
// the named approvers (same company) is checked by the service layer, which
// can reach the user repository.
func ValidateRuleSet(rs *entity.ApprovalRuleSet) error {
	switch rs.Mode {
	case entity.ModeSequential:
		if len(rs.Steps) == 0 {
			return ErrEmptyRuleSet
		}
		for i, step := range rs.Steps {
			if len(step.ApproverIDs) == 0 {
				return fmt.Errorf("step %d: %w", i+1, ErrEmptyStep)
			}
			seen := make(map[int64]bool, len(step.ApproverIDs))
			for _, id := range step.ApproverIDs {
				if seen[id] {
					return fmt.Errorf("step %d: approver %d: %w", i+1, id, ErrDuplicateApprover)
				}
				seen[id] = true
			}
		}
	case entity.ModeConditional:
		if len(rs.ApproverIDs) == 0 {
			return ErrEmptyRuleSet
		}
		if rs.Threshold <= 0 || rs.Threshold > 100 {
			return fmt.Errorf("%w: got %v", ErrInvalidThreshold, rs.Threshold)
		}
		seen := make(map[int64]bool, len(rs.ApproverIDs))
		for _, id := range rs.ApproverIDs {
			if seen[id] {
				return fmt.Errorf("approver %d: %w", id, ErrDuplicateApprover)
			}
			seen[id] = true
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRuleMode, rs.Mode)
	}
	return nil
}
