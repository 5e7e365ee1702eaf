package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/domain/entity"
	"github.com/expenseflow/backend/internal/infrastructure/persistence/sqlite"
)

// ApprovalRequestRepository implements port.ApprovalRequestRepository
type ApprovalRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRequestRepository creates a new approval request repository
func NewApprovalRequestRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRequestRepository {
	return &ApprovalRequestRepository{db: db, logger: logger}
}

const approvalColumns = `id, expense_id, rule_set_id, approver_id, step,
	decision, comment, decided_at, created_at`

func scanApproval(row interface{ Scan(...interface{}) error }) (*entity.ApprovalRequest, error) {
	var entry entity.ApprovalRequest
	var decidedAt sql.NullTime
	err := row.Scan(
		&entry.ID,
		&entry.ExpenseID,
		&entry.RuleSetID,
		&entry.ApproverID,
		&entry.Step,
		&entry.Decision,
		&entry.Comment,
		&decidedAt,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		entry.DecidedAt = &decidedAt.Time
	}
	return &entry, nil
}

// CreateBatch inserts the ledger entries for one materialized step. A single
// multi-row INSERT keeps the step atomic even outside a caller transaction.
func (r *ApprovalRequestRepository) CreateBatch(ctx context.Context, entries []*entity.ApprovalRequest) error {
	if len(entries) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*5)
	for _, entry := range entries {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?)")
		args = append(args,
			entry.ExpenseID,
			entry.RuleSetID,
			entry.ApproverID,
			entry.Step,
			entry.Decision,
		)
	}

	query := `
		INSERT INTO approval_requests (expense_id, rule_set_id, approver_id, step, decision)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create approval entries",
			zap.Int64("expense_id", entries[0].ExpenseID),
			zap.Int("count", len(entries)),
			zap.Error(err))
		return fmt.Errorf("create approval entries: %w", err)
	}
	return nil
}

func (r *ApprovalRequestRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*entity.ApprovalRequest, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*entity.ApprovalRequest
	for rows.Next() {
		entry, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetByExpenseID retrieves an expense's full ledger ordered by step
func (r *ApprovalRequestRepository) GetByExpenseID(ctx context.Context, expenseID int64) ([]*entity.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
		WHERE expense_id = ? ORDER BY step, id`

	entries, err := r.queryEntries(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to get approval ledger", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("get approval ledger: %w", err)
	}
	return entries, nil
}

// GetPendingByExpenseAndApprover finds the approver's open entry on an
// expense; returns nil when the approver has nothing pending there
func (r *ApprovalRequestRepository) GetPendingByExpenseAndApprover(ctx context.Context, expenseID, approverID int64) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
		WHERE expense_id = ? AND approver_id = ? AND decision = ?
		ORDER BY step LIMIT 1`

	entry, err := scanApproval(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query,
		expenseID, approverID, entity.DecisionPending))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get pending approval",
			zap.Int64("expense_id", expenseID),
			zap.Int64("approver_id", approverID),
			zap.Error(err))
		return nil, fmt.Errorf("get pending approval: %w", err)
	}
	return entry, nil
}

// GetPendingByApprover lists everything waiting on one approver, oldest first
func (r *ApprovalRequestRepository) GetPendingByApprover(ctx context.Context, approverID int64) ([]*entity.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
		WHERE approver_id = ? AND decision = ? ORDER BY created_at, id`

	entries, err := r.queryEntries(ctx, query, approverID, entity.DecisionPending)
	if err != nil {
		r.logger.Error("Failed to list pending approvals", zap.Int64("approver_id", approverID), zap.Error(err))
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return entries, nil
}

// ApplyDecision resolves a pending ledger entry. The decision guard in the
// WHERE clause makes a second write on the same entry a no-op.
func (r *ApprovalRequestRepository) ApplyDecision(ctx context.Context, id int64, decision entity.Decision, comment string, decidedAt time.Time) error {
	query := `
		UPDATE approval_requests
		SET decision = ?, comment = ?, decided_at = ?
		WHERE id = ? AND decision = ?
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		decision, comment, decidedAt, id, entity.DecisionPending)
	if err != nil {
		r.logger.Error("Failed to apply decision",
			zap.Int64("id", id),
			zap.String("decision", string(decision)),
			zap.Error(err))
		return fmt.Errorf("apply decision: %w", err)
	}
	return nil
}
