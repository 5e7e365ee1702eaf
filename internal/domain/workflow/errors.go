package workflow

import "errors"

var (
	// ErrUnknownRuleMode is returned when a rule set carries an unrecognized mode
	ErrUnknownRuleMode = errors.New("unknown rule mode")

	// ErrEmptyRuleSet is returned when a rule set defines no approvers at all
	ErrEmptyRuleSet = errors.New("rule set requires at least one approver")

	// ErrEmptyStep is returned when a sequential step names no approvers
	ErrEmptyStep = errors.New("sequential step requires at least one approver")

	// ErrInvalidThreshold is returned when a conditional threshold is outside (0, 100]
	ErrInvalidThreshold = errors.New("threshold must be greater than 0 and at most 100")

	// ErrDuplicateApprover is returned when the same approver appears twice in one step
	ErrDuplicateApprover = errors.New("duplicate approver within step")
)
