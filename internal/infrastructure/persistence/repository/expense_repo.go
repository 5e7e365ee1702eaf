package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/domain/entity"
	"github.com/expenseflow/backend/internal/infrastructure/persistence/sqlite"
)

// ExpenseRepository implements port.ExpenseRepository. Amounts are stored as
// decimal strings so no precision is lost round-tripping through SQLite.
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{db: db, logger: logger}
}

const expenseColumns = `id, employee_id, company_id, amount, currency,
	amount_company_currency, category, description, status, expense_date,
	created_at, updated_at`

func scanExpense(row interface{ Scan(...interface{}) error }) (*entity.Expense, error) {
	var expense entity.Expense
	var amount, converted string
	err := row.Scan(
		&expense.ID,
		&expense.EmployeeID,
		&expense.CompanyID,
		&amount,
		&expense.Currency,
		&converted,
		&expense.Category,
		&expense.Description,
		&expense.Status,
		&expense.ExpenseDate,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expense.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if expense.AmountInCompanyCurrency, err = decimal.NewFromString(converted); err != nil {
		return nil, fmt.Errorf("parse converted amount: %w", err)
	}
	return &expense, nil
}

// Create persists a new expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	query := `
		INSERT INTO expenses (
			employee_id, company_id, amount, currency, amount_company_currency,
			category, description, status, expense_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		expense.EmployeeID,
		expense.CompanyID,
		expense.Amount.String(),
		expense.Currency,
		expense.AmountInCompanyCurrency.String(),
		expense.Category,
		expense.Description,
		expense.Status,
		expense.ExpenseDate,
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.Error(err))
		return fmt.Errorf("create expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	expense.ID = id
	return nil
}

// GetByID retrieves an expense by ID; returns nil when not found
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

	expense, err := scanExpense(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return expense, nil
}

// GetByEmployeeID retrieves a page of an employee's expenses, newest first
func (r *ExpenseRepository) GetByEmployeeID(ctx context.Context, employeeID int64, limit, offset int) ([]*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses
		WHERE employee_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, employeeID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Int64("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

// UpdateStatus updates the expense status. Terminal statuses are guarded in
// SQL as well: a row already APPROVED or REJECTED is never overwritten.
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id int64, status entity.ExpenseStatus) error {
	query := `
		UPDATE expenses
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, status, id, entity.StatusPending)
	if err != nil {
		r.logger.Error("Failed to update expense status",
			zap.Int64("id", id),
			zap.String("status", status.String()),
			zap.Error(err))
		return fmt.Errorf("update expense status: %w", err)
	}
	return nil
}
