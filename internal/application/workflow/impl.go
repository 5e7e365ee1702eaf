package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/domain/entity"
	domainwf "github.com/expenseflow/backend/internal/domain/workflow"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	expenseRepo  port.ExpenseRepository
	approvalRepo port.ApprovalRequestRepository
	ruleSetRepo  port.RuleSetRepository
	txManager    port.TransactionManager
	notifier     port.Notifier
	logger       *zap.Logger

	// Per-expense locks serialize concurrent decisions on the same expense
	// so two callers can never both observe a non-terminal state and race it
	// past terminal. Different expenses proceed independently.
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithNotifier sets the fire-and-forget outcome notifier
func WithNotifier(n port.Notifier) EngineOption {
	return func(e *engineImpl) {
		e.notifier = n
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	expenseRepo port.ExpenseRepository,
	approvalRepo port.ApprovalRequestRepository,
	ruleSetRepo port.RuleSetRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		expenseRepo:  expenseRepo,
		approvalRepo: approvalRepo,
		ruleSetRepo:  ruleSetRepo,
		txManager:    txManager,
		logger:       logger,
		locks:        make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engineImpl) lockFor(expenseID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[expenseID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[expenseID] = l
	}
	return l
}

// StartWorkflow materializes the ledger entries for the first reachable step
func (e *engineImpl) StartWorkflow(ctx context.Context, expense *entity.Expense, ruleSet *entity.ApprovalRuleSet) error {
	outcome, err := domainwf.Evaluate(ruleSet, nil)
	if err != nil {
		return err
	}

	if outcome.Satisfied {
		// Zero-approver rule set: validation forbids these at creation, but a
		// legacy row must resolve instead of leaving the expense stuck.
		e.logger.Warn("Rule set requires no approvers, auto-approving",
			zap.Int64("expense_id", expense.ID),
			zap.Int64("rule_set_id", ruleSet.ID))
		if err := e.expenseRepo.UpdateStatus(ctx, expense.ID, entity.StatusApproved); err != nil {
			return fmt.Errorf("auto-approve expense: %w", err)
		}
		expense.Status = entity.StatusApproved
		return nil
	}

	if outcome.NextStep == 0 {
		return nil
	}

	entries := buildStepEntries(expense, ruleSet, outcome.NextStep)
	if err := e.approvalRepo.CreateBatch(ctx, entries); err != nil {
		return fmt.Errorf("materialize step %d: %w", outcome.NextStep, err)
	}

	e.logger.Info("Workflow started",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("rule_set_id", ruleSet.ID),
		zap.String("mode", string(ruleSet.Mode)),
		zap.Int("step", outcome.NextStep),
		zap.Int("entries", len(entries)))
	return nil
}

// RecordDecision applies a decision and advances the workflow
func (e *engineImpl) RecordDecision(ctx context.Context, expenseID, approverID int64, approved bool, comment string) (entity.ExpenseStatus, error) {
	lock := e.lockFor(expenseID)
	lock.Lock()
	defer lock.Unlock()

	expense, err := e.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return "", fmt.Errorf("get expense: %w", err)
	}
	if expense == nil {
		return "", fmt.Errorf("%w: id %d", ErrExpenseNotFound, expenseID)
	}

	// Late or duplicate retries against a settled expense are a no-op.
	if expense.Status.IsTerminal() {
		e.logger.Info("Decision ignored, expense already terminal",
			zap.Int64("expense_id", expenseID),
			zap.Int64("approver_id", approverID),
			zap.String("status", expense.Status.String()))
		return expense.Status, nil
	}

	entry, err := e.approvalRepo.GetPendingByExpenseAndApprover(ctx, expenseID, approverID)
	if err != nil {
		return "", fmt.Errorf("get pending approval: %w", err)
	}
	if entry == nil {
		return "", fmt.Errorf("%w: expense %d, approver %d", ErrNoPendingApproval, expenseID, approverID)
	}

	ruleSet, err := e.ruleSetRepo.GetByID(ctx, entry.RuleSetID)
	if err != nil {
		return "", fmt.Errorf("get rule set: %w", err)
	}
	if ruleSet == nil {
		return "", fmt.Errorf("%w: id %d", ErrRuleSetNotFound, entry.RuleSetID)
	}

	decision := entity.DecisionApproved
	if !approved {
		decision = entity.DecisionRejected
	}

	status := expense.Status
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.approvalRepo.ApplyDecision(txCtx, entry.ID, decision, comment, time.Now()); err != nil {
			return fmt.Errorf("apply decision: %w", err)
		}

		entries, err := e.approvalRepo.GetByExpenseID(txCtx, expenseID)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}

		outcome, err := domainwf.Evaluate(ruleSet, entries)
		if err != nil {
			return err
		}

		switch {
		case outcome.Rejected:
			status = entity.StatusRejected
			return e.expenseRepo.UpdateStatus(txCtx, expenseID, status)
		case outcome.Satisfied:
			status = entity.StatusApproved
			return e.expenseRepo.UpdateStatus(txCtx, expenseID, status)
		case outcome.NextStep > 0:
			next := buildStepEntries(expense, ruleSet, outcome.NextStep)
			if err := e.approvalRepo.CreateBatch(txCtx, next); err != nil {
				return fmt.Errorf("materialize step %d: %w", outcome.NextStep, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	e.logger.Info("Decision recorded",
		zap.Int64("expense_id", expenseID),
		zap.Int64("approver_id", approverID),
		zap.String("decision", string(decision)),
		zap.String("status", status.String()))

	if status.IsTerminal() && e.notifier != nil {
		e.notifier.NotifyDecision(port.DecisionNotification{
			ExpenseID:  expenseID,
			EmployeeID: expense.EmployeeID,
			ApproverID: approverID,
			Status:     status,
			Comment:    comment,
		})
	}

	return status, nil
}

// buildStepEntries creates pending ledger entries for every approver required
// at the given step
func buildStepEntries(expense *entity.Expense, ruleSet *entity.ApprovalRuleSet, step int) []*entity.ApprovalRequest {
	approvers := ruleSet.StepApprovers(step)
	entries := make([]*entity.ApprovalRequest, 0, len(approvers))
	for _, approverID := range approvers {
		entries = append(entries, &entity.ApprovalRequest{
			ExpenseID:  expense.ID,
			RuleSetID:  ruleSet.ID,
			ApproverID: approverID,
			Step:       step,
			Decision:   entity.DecisionPending,
		})
	}
	return entries
}
