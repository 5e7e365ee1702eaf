package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/domain/entity"
	domainwf "github.com/expenseflow/backend/internal/domain/workflow"
)

func TestCreateRuleSetValidatesPayload(t *testing.T) {
	svc := NewRuleSetService(&mockRuleSetRepo{}, &mockUserRepo{}, noopTx{}, zap.NewNop())

	_, err := svc.Create(context.Background(), &entity.ApprovalRuleSet{
		CompanyID: 1,
		Mode:      entity.ModeSequential,
	}, true)
	assert.ErrorIs(t, err, domainwf.ErrEmptyRuleSet)

	_, err = svc.Create(context.Background(), &entity.ApprovalRuleSet{
		CompanyID:   1,
		Mode:        entity.ModeConditional,
		Threshold:   150,
		ApproverIDs: []int64{2},
	}, true)
	assert.ErrorIs(t, err, domainwf.ErrInvalidThreshold)
}

func TestCreateRuleSetChecksApproverEligibility(t *testing.T) {
	users := &mockUserRepo{
		getByIDsFunc: func(ctx context.Context, ids []int64) ([]*entity.User, error) {
			// Approver 3 belongs to another company; approver 4 is unknown.
			return []*entity.User{
				{ID: 2, CompanyID: 1},
				{ID: 3, CompanyID: 9},
			}, nil
		},
	}
	svc := NewRuleSetService(&mockRuleSetRepo{}, users, noopTx{}, zap.NewNop())

	_, err := svc.Create(context.Background(), &entity.ApprovalRuleSet{
		CompanyID: 1,
		Mode:      entity.ModeSequential,
		Steps:     []entity.ApprovalStep{{ApproverIDs: []int64{2, 3}}},
	}, true)
	assert.ErrorIs(t, err, ErrApproverNotEligible)

	_, err = svc.Create(context.Background(), &entity.ApprovalRuleSet{
		CompanyID: 1,
		Mode:      entity.ModeSequential,
		Steps:     []entity.ApprovalStep{{ApproverIDs: []int64{4}}},
	}, true)
	assert.ErrorIs(t, err, ErrApproverNotEligible)
}

func TestCreateRuleSetActivates(t *testing.T) {
	activated := false
	ruleSets := &mockRuleSetRepo{
		activateFunc: func(ctx context.Context, companyID, ruleSetID int64) error {
			activated = true
			assert.Equal(t, int64(1), companyID)
			return nil
		},
	}
	svc := NewRuleSetService(ruleSets, &mockUserRepo{}, noopTx{}, zap.NewNop())

	rs, err := svc.Create(context.Background(), &entity.ApprovalRuleSet{
		CompanyID:   1,
		Mode:        entity.ModeConditional,
		Threshold:   60,
		ApproverIDs: []int64{2, 3, 4},
	}, true)
	require.NoError(t, err)
	assert.True(t, activated)
	assert.True(t, rs.Active)
}
