package workflow

import (
	"errors"
	"testing"

	"github.com/expenseflow/backend/internal/domain/entity"
)

func sequentialRuleSet(steps ...[]int64) *entity.ApprovalRuleSet {
	rs := &entity.ApprovalRuleSet{Mode: entity.ModeSequential}
	for _, ids := range steps {
		rs.Steps = append(rs.Steps, entity.ApprovalStep{ApproverIDs: ids})
	}
	return rs
}

func conditionalRuleSet(threshold float64, approvers ...int64) *entity.ApprovalRuleSet {
	return &entity.ApprovalRuleSet{
		Mode:        entity.ModeConditional,
		Threshold:   threshold,
		ApproverIDs: approvers,
	}
}

func entry(step int, approver int64, decision entity.Decision) *entity.ApprovalRequest {
	return &entity.ApprovalRequest{Step: step, ApproverID: approver, Decision: decision}
}

func TestEvaluateSequential(t *testing.T) {
	tests := []struct {
		name    string
		ruleSet *entity.ApprovalRuleSet
		entries []*entity.ApprovalRequest
		want    Outcome
	}{
		{
			name:    "empty ledger asks for first step",
			ruleSet: sequentialRuleSet([]int64{1}, []int64{2}),
			entries: nil,
			want:    Outcome{NextStep: 1},
		},
		{
			name:    "pending first step waits",
			ruleSet: sequentialRuleSet([]int64{1}, []int64{2}),
			entries: []*entity.ApprovalRequest{entry(1, 1, entity.DecisionPending)},
			want:    Outcome{},
		},
		{
			name:    "approved first step advances to second",
			ruleSet: sequentialRuleSet([]int64{1}, []int64{2}),
			entries: []*entity.ApprovalRequest{entry(1, 1, entity.DecisionApproved)},
			want:    Outcome{NextStep: 2},
		},
		{
			name:    "all steps approved satisfies",
			ruleSet: sequentialRuleSet([]int64{1}, []int64{2}),
			entries: []*entity.ApprovalRequest{
				entry(1, 1, entity.DecisionApproved),
				entry(2, 2, entity.DecisionApproved),
			},
			want: Outcome{Satisfied: true},
		},
		{
			name:    "rejection at first step is terminal",
			ruleSet: sequentialRuleSet([]int64{1}, []int64{2}),
			entries: []*entity.ApprovalRequest{entry(1, 1, entity.DecisionRejected)},
			want:    Outcome{Rejected: true},
		},
		{
			name:    "rejection wins over pending peers at the same step",
			ruleSet: sequentialRuleSet([]int64{1, 2}),
			entries: []*entity.ApprovalRequest{
				entry(1, 1, entity.DecisionRejected),
				entry(1, 2, entity.DecisionPending),
			},
			want: Outcome{Rejected: true},
		},
		{
			name:    "multi approver step waits for everyone",
			ruleSet: sequentialRuleSet([]int64{1, 2}),
			entries: []*entity.ApprovalRequest{
				entry(1, 1, entity.DecisionApproved),
				entry(1, 2, entity.DecisionPending),
			},
			want: Outcome{},
		},
		{
			name:    "zero step rule set is auto satisfied",
			ruleSet: sequentialRuleSet(),
			entries: nil,
			want:    Outcome{Satisfied: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.ruleSet, tt.entries)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluateConditional(t *testing.T) {
	tests := []struct {
		name    string
		ruleSet *entity.ApprovalRuleSet
		entries []*entity.ApprovalRequest
		want    Outcome
	}{
		{
			name:    "empty ledger asks for materialization",
			ruleSet: conditionalRuleSet(60, 1, 2, 3),
			entries: nil,
			want:    Outcome{NextStep: 1},
		},
		{
			name:    "two of three at 60 percent satisfies without the third",
			ruleSet: conditionalRuleSet(60, 1, 2, 3),
			entries: []*entity.ApprovalRequest{
				entry(1, 1, entity.DecisionApproved),
				entry(1, 2, entity.DecisionApproved),
				entry(1, 3, entity.DecisionPending),
			},
			want: Outcome{Satisfied: true},
		},
		{
			name:    "one of three at 60 percent still waits",
			ruleSet: conditionalRuleSet(60, 1, 2, 3),
			entries: []*entity.ApprovalRequest{
				entry(1, 1, entity.DecisionApproved),
				entry(1, 2, entity.DecisionPending),
				entry(1, 3, entity.DecisionPending),
			},
			want: Outcome{},
		},
		{
			name:    "threshold mathematically unreachable rejects early",
			ruleSet: conditionalRuleSet(60, 1, 2, 3),
			entries: []*entity.ApprovalRequest{
				entry(1, 1, entity.DecisionRejected),
				entry(1, 2, entity.DecisionRejected),
				entry(1, 3, entity.DecisionPending),
			},
			want: Outcome{Rejected: true},
		},
		{
			name:    "single rejection keeps the pool viable",
			ruleSet: conditionalRuleSet(60, 1, 2, 3),
			entries: []*entity.ApprovalRequest{
				entry(1, 1, entity.DecisionRejected),
				entry(1, 2, entity.DecisionPending),
				entry(1, 3, entity.DecisionPending),
			},
			want: Outcome{},
		},
		{
			name:    "hundred percent requires everyone",
			ruleSet: conditionalRuleSet(100, 1, 2),
			entries: []*entity.ApprovalRequest{
				entry(1, 1, entity.DecisionApproved),
				entry(1, 2, entity.DecisionRejected),
			},
			want: Outcome{Rejected: true},
		},
		{
			name:    "empty pool is auto satisfied",
			ruleSet: conditionalRuleSet(60),
			entries: nil,
			want:    Outcome{Satisfied: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.ruleSet, tt.entries)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEvaluateUnknownMode(t *testing.T) {
	rs := &entity.ApprovalRuleSet{Mode: entity.RuleMode("majority")}
	_, err := Evaluate(rs, nil)
	if !errors.Is(err, ErrUnknownRuleMode) {
		t.Errorf("Evaluate() error = %v, want ErrUnknownRuleMode", err)
	}
}

func TestValidateRuleSet(t *testing.T) {
	tests := []struct {
		name    string
		ruleSet *entity.ApprovalRuleSet
		wantErr error
	}{
		{"valid sequential", sequentialRuleSet([]int64{1}, []int64{2, 3}), nil},
		{"valid conditional", conditionalRuleSet(60, 1, 2, 3), nil},
		{"sequential without steps", sequentialRuleSet(), ErrEmptyRuleSet},
		{"sequential with empty step", sequentialRuleSet([]int64{1}, nil), ErrEmptyStep},
		{"sequential duplicate approver in step", sequentialRuleSet([]int64{1, 1}), ErrDuplicateApprover},
		{"conditional without approvers", conditionalRuleSet(60), ErrEmptyRuleSet},
		{"conditional zero threshold", conditionalRuleSet(0, 1), ErrInvalidThreshold},
		{"conditional threshold above hundred", conditionalRuleSet(120, 1), ErrInvalidThreshold},
		{"conditional duplicate approver", conditionalRuleSet(60, 1, 1), ErrDuplicateApprover},
		{"unknown mode", &entity.ApprovalRuleSet{Mode: "majority"}, ErrUnknownRuleMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuleSet(tt.ruleSet)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRuleSet() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRuleSet() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
