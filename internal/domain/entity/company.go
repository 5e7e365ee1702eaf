package entity

import "time"

// Role represents a user's role within a company
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// Company represents a tenant whose expenses are normalized into one currency
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"` // ISO 4217 code, e.g. "EUR"
	CreatedAt time.Time `json:"created_at"`
}

// User represents an employee, manager or admin of a company.
// Manager/employee links are plain ID references resolved through the
// repository, never in-memory back-pointers.
type User struct {
	ID                int64     `json:"id"`
	CompanyID         int64     `json:"company_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	Role              Role      `json:"role"`
	ManagerID         *int64    `json:"manager_id,omitempty"`
	IsManagerApprover bool      `json:"is_manager_approver"`
	CreatedAt         time.Time `json:"created_at"`
}
