package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/application/workflow"
	"github.com/expenseflow/backend/internal/domain/entity"
	domainwf "github.com/expenseflow/backend/internal/domain/workflow"
)

// ErrApproverNotEligible is returned at rule-set creation time when a named
// approver does not exist or belongs to another company. Never discovered
// mid-evaluation.
var ErrApproverNotEligible = errors.New("approver not eligible for this company")

// RuleSetService manages approval rule set versions for a company
type RuleSetService interface {
	// Create validates and persists a new rule set version. When activate is
	// true it becomes the company's single active rule set.
	Create(ctx context.Context, ruleSet *entity.ApprovalRuleSet, activate bool) (*entity.ApprovalRuleSet, error)

	// Activate makes an existing version the company's active rule set
	Activate(ctx context.Context, companyID, ruleSetID int64) error

	// GetActive returns the company's currently active rule set
	GetActive(ctx context.Context, companyID int64) (*entity.ApprovalRuleSet, error)
}

type ruleSetServiceImpl struct {
	ruleSetRepo port.RuleSetRepository
	userRepo    port.UserRepository
	txManager   port.TransactionManager
	logger      *zap.Logger
}

// NewRuleSetService creates a new RuleSetService
func NewRuleSetService(
	ruleSetRepo port.RuleSetRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
) RuleSetService {
	return &ruleSetServiceImpl{
		ruleSetRepo: ruleSetRepo,
		userRepo:    userRepo,
		txManager:   txManager,
		logger:      logger,
	}
}

func (s *ruleSetServiceImpl) Create(ctx context.Context, ruleSet *entity.ApprovalRuleSet, activate bool) (*entity.ApprovalRuleSet, error) {
	if err := domainwf.ValidateRuleSet(ruleSet); err != nil {
		return nil, err
	}
	if err := s.checkEligibility(ctx, ruleSet); err != nil {
		return nil, err
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.ruleSetRepo.Create(txCtx, ruleSet); err != nil {
			return fmt.Errorf("create rule set: %w", err)
		}
		if activate {
			return s.ruleSetRepo.Activate(txCtx, ruleSet.CompanyID, ruleSet.ID)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create rule set",
			zap.Int64("company_id", ruleSet.CompanyID),
			zap.Error(err))
		return nil, err
	}
	ruleSet.Active = activate

	s.logger.Info("Rule set created",
		zap.Int64("id", ruleSet.ID),
		zap.Int64("company_id", ruleSet.CompanyID),
		zap.String("mode", string(ruleSet.Mode)),
		zap.Bool("active", activate))
	return ruleSet, nil
}

func (s *ruleSetServiceImpl) Activate(ctx context.Context, companyID, ruleSetID int64) error {
	ruleSet, err := s.ruleSetRepo.GetByID(ctx, ruleSetID)
	if err != nil {
		return fmt.Errorf("get rule set: %w", err)
	}
	if ruleSet == nil || ruleSet.CompanyID != companyID {
		return fmt.Errorf("%w: id %d for company %d", workflow.ErrRuleSetNotFound, ruleSetID, companyID)
	}

	if err := s.ruleSetRepo.Activate(ctx, companyID, ruleSetID); err != nil {
		return fmt.Errorf("activate rule set: %w", err)
	}

	s.logger.Info("Rule set activated",
		zap.Int64("id", ruleSetID),
		zap.Int64("company_id", companyID))
	return nil
}

func (s *ruleSetServiceImpl) GetActive(ctx context.Context, companyID int64) (*entity.ApprovalRuleSet, error) {
	ruleSet, err := s.ruleSetRepo.GetActiveByCompanyID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if ruleSet == nil {
		return nil, fmt.Errorf("%w: company %d", ErrNoActiveRuleSet, companyID)
	}
	return ruleSet, nil
}

// checkEligibility verifies every named approver exists and belongs to the
// rule set's company
func (s *ruleSetServiceImpl) checkEligibility(ctx context.Context, ruleSet *entity.ApprovalRuleSet) error {
	ids := make([]int64, 0)
	seen := make(map[int64]bool)
	collect := func(approverIDs []int64) {
		for _, id := range approverIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	for _, step := range ruleSet.Steps {
		collect(step.ApproverIDs)
	}
	collect(ruleSet.ApproverIDs)

	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load approvers: %w", err)
	}

	byID := make(map[int64]*entity.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: user %d does not exist", ErrApproverNotEligible, id)
		}
		if u.CompanyID != ruleSet.CompanyID {
			return fmt.Errorf("%w: user %d belongs to company %d", ErrApproverNotEligible, id, u.CompanyID)
		}
	}
	return nil
}
