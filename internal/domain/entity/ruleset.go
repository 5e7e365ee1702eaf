package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleMode distinguishes how a rule set sequences its approvals
type RuleMode string

const (
	// ModeSequential resolves ordered steps one at a time; any rejection is terminal
	ModeSequential RuleMode = "sequential"
	// ModeConditional uses a flat approver pool with a percentage threshold
	ModeConditional RuleMode = "conditional"
)

// ApprovalStep names the approvers required at one position of a sequential chain
type ApprovalStep struct {
	ApproverIDs []int64 `json:"approver_ids"`
}

// ApprovalRuleSet is a company's approval configuration. Rows are versioned:
// activation inserts a new row and deactivates the old one, so ledgers created
// against an earlier version keep evaluating against the payload they
// snapshotted at submission time.
type ApprovalRuleSet struct {
	ID        int64    `json:"id"`
	CompanyID int64    `json:"company_id"`
	Name      string   `json:"name"`
	Mode      RuleMode `json:"mode"`

	// Sequential payload: ordered steps 1..N
	Steps []ApprovalStep `json:"steps,omitempty"`

	// Conditional payload: percentage threshold over a flat approver pool
	Threshold   float64 `json:"threshold,omitempty"`
	ApproverIDs []int64 `json:"approver_ids,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// rulePayload is the persisted JSON shape of the mode-dependent rule data
type rulePayload struct {
	Steps       []ApprovalStep `json:"steps,omitempty"`
	Threshold   float64        `json:"threshold,omitempty"`
	ApproverIDs []int64        `json:"approver_ids,omitempty"`
}

// EncodePayload serializes the mode-dependent portion of the rule set
func (rs *ApprovalRuleSet) EncodePayload() (string, error) {
	payload := rulePayload{
		Steps:       rs.Steps,
		Threshold:   rs.Threshold,
		ApproverIDs: rs.ApproverIDs,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode rule payload: %w", err)
	}
	return string(data), nil
}

// DecodePayload populates the mode-dependent fields from persisted JSON.
// Decoding happens once at load time; the evaluator never re-parses JSON.
func (rs *ApprovalRuleSet) DecodePayload(raw string) error {
	var payload rulePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("decode rule payload: %w", err)
	}
	rs.Steps = payload.Steps
	rs.Threshold = payload.Threshold
	rs.ApproverIDs = payload.ApproverIDs
	return nil
}

// StepApprovers returns the approvers required at a 1-based step. For
// conditional rule sets every approver belongs to step 1.
func (rs *ApprovalRuleSet) StepApprovers(step int) []int64 {
	switch rs.Mode {
	case ModeSequential:
		if step < 1 || step > len(rs.Steps) {
			return nil
		}
		return rs.Steps[step-1].ApproverIDs
	case ModeConditional:
		if step != 1 {
			return nil
		}
		return rs.ApproverIDs
	}
	return nil
}

// StepCount returns the number of steps the rule set defines
func (rs *ApprovalRuleSet) StepCount() int {
	if rs.Mode == ModeSequential {
		return len(rs.Steps)
	}
	return 1
}
