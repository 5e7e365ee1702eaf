package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/application/workflow"
	"github.com/expenseflow/backend/internal/domain/entity"
)

// ApprovalService is the approver-facing surface: listing pending ledger
// entries and recording decisions. Authorization (may this user act as this
// approver) is the caller's responsibility.
type ApprovalService interface {
	PendingForApprover(ctx context.Context, approverID int64) ([]*entity.ApprovalRequest, error)
	Decide(ctx context.Context, expenseID, approverID int64, approved bool, comment string) (entity.ExpenseStatus, error)
}

type approvalServiceImpl struct {
	approvalRepo port.ApprovalRequestRepository
	engine       workflow.Engine
	logger       *zap.Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	approvalRepo port.ApprovalRequestRepository,
	engine workflow.Engine,
	logger *zap.Logger,
) ApprovalService {
	return &approvalServiceImpl{
		approvalRepo: approvalRepo,
		engine:       engine,
		logger:       logger,
	}
}

// PendingForApprover lists the approver's unresolved ledger entries
func (s *approvalServiceImpl) PendingForApprover(ctx context.Context, approverID int64) ([]*entity.ApprovalRequest, error) {
	entries, err := s.approvalRepo.GetPendingByApprover(ctx, approverID)
	if err != nil {
		s.logger.Error("Failed to list pending approvals",
			zap.Int64("approver_id", approverID),
			zap.Error(err))
		return nil, err
	}
	return entries, nil
}

// Decide records the approver's decision through the workflow engine
func (s *approvalServiceImpl) Decide(ctx context.Context, expenseID, approverID int64, approved bool, comment string) (entity.ExpenseStatus, error) {
	return s.engine.RecordDecision(ctx, expenseID, approverID, approved, comment)
}
