package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/domain/entity"
	"github.com/expenseflow/backend/internal/infrastructure/persistence/sqlite"
)

// RuleSetRepository implements port.RuleSetRepository. The mode-dependent rule
// data lives in a single JSON payload column; rows are versioned and payloads
// are never updated in place.
type RuleSetRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleSetRepository creates a new rule set repository
func NewRuleSetRepository(db *sql.DB, logger *zap.Logger) port.RuleSetRepository {
	return &RuleSetRepository{db: db, logger: logger}
}

const ruleSetColumns = `id, company_id, name, mode, payload, active, created_at`

func scanRuleSet(row interface{ Scan(...interface{}) error }) (*entity.ApprovalRuleSet, error) {
	var ruleSet entity.ApprovalRuleSet
	var payload string
	err := row.Scan(
		&ruleSet.ID,
		&ruleSet.CompanyID,
		&ruleSet.Name,
		&ruleSet.Mode,
		&payload,
		&ruleSet.Active,
		&ruleSet.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := ruleSet.DecodePayload(payload); err != nil {
		return nil, err
	}
	return &ruleSet, nil
}

// Create persists a new rule set version
func (r *RuleSetRepository) Create(ctx context.Context, ruleSet *entity.ApprovalRuleSet) error {
	payload, err := ruleSet.EncodePayload()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO approval_rule_sets (company_id, name, mode, payload, active)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		ruleSet.CompanyID,
		ruleSet.Name,
		ruleSet.Mode,
		payload,
		ruleSet.Active,
	)
	if err != nil {
		r.logger.Error("Failed to create rule set", zap.Error(err))
		return fmt.Errorf("create rule set: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	ruleSet.ID = id
	return nil
}

// GetByID retrieves a rule set by ID; returns nil when not found
func (r *RuleSetRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalRuleSet, error) {
	query := `SELECT ` + ruleSetColumns + ` FROM approval_rule_sets WHERE id = ?`

	ruleSet, err := scanRuleSet(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get rule set", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get rule set: %w", err)
	}
	return ruleSet, nil
}

// GetActiveByCompanyID retrieves the company's active rule set; nil when none
func (r *RuleSetRepository) GetActiveByCompanyID(ctx context.Context, companyID int64) (*entity.ApprovalRuleSet, error) {
	query := `SELECT ` + ruleSetColumns + ` FROM approval_rule_sets
		WHERE company_id = ? AND active = 1`

	ruleSet, err := scanRuleSet(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, companyID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active rule set", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("get active rule set: %w", err)
	}
	return ruleSet, nil
}

// Activate flips the company's active flag to the given rule set. Clearing and
// setting happen as two statements, so callers run this inside a transaction.
func (r *RuleSetRepository) Activate(ctx context.Context, companyID, ruleSetID int64) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)

	if _, err := exec.ExecContext(ctx,
		`UPDATE approval_rule_sets SET active = 0 WHERE company_id = ? AND active = 1`,
		companyID,
	); err != nil {
		return fmt.Errorf("deactivate rule sets: %w", err)
	}

	result, err := exec.ExecContext(ctx,
		`UPDATE approval_rule_sets SET active = 1 WHERE id = ? AND company_id = ?`,
		ruleSetID, companyID,
	)
	if err != nil {
		return fmt.Errorf("activate rule set: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule set %d not found for company %d", ruleSetID, companyID)
	}
	return nil
}
