package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/expenseflow/backend/internal/application/port"
	"github.com/expenseflow/backend/internal/domain/entity"
	"github.com/expenseflow/backend/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userColumns = `id, company_id, username, email, role, manager_id, is_manager_approver, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*entity.User, error) {
	var user entity.User
	var managerID sql.NullInt64
	err := row.Scan(
		&user.ID,
		&user.CompanyID,
		&user.Username,
		&user.Email,
		&user.Role,
		&managerID,
		&user.IsManagerApprover,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if managerID.Valid {
		user.ManagerID = &managerID.Int64
	}
	return &user, nil
}

// Create persists a new user
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (company_id, username, email, role, manager_id, is_manager_approver)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var managerID interface{}
	if user.ManagerID != nil {
		managerID = *user.ManagerID
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		user.CompanyID,
		user.Username,
		user.Email,
		user.Role,
		managerID,
		user.IsManagerApprover,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.Error(err))
		return fmt.Errorf("create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by ID; returns nil when not found
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetByIDs retrieves the users matching the given IDs; missing IDs are simply
// absent from the result
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := `SELECT ` + userColumns + ` FROM users WHERE id IN (` + placeholders + `)`

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get users by ids", zap.Error(err))
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetByCompanyID retrieves all users of a company
func (r *UserRepository) GetByCompanyID(ctx context.Context, companyID int64) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE company_id = ? ORDER BY id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to get users by company", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
