package core

import (
	"context"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// User is an operator scoped to a tenant. Login and credentials live outside
// this service; the ledger only needs to know the user exists and is active.
type User struct {
	ID       int    `json:"id"`
	TenantID int    `json:"tenant_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// UserService provides user lookup operations.
type UserService interface {
	// GetByID returns a user of the tenant by primary key.
	GetByID(ctx context.Context, tenantID, userID int) (*User, error)

	// RequireActive returns ErrNotFound for unknown users and ErrValidation for
	// deactivated ones.
	RequireActive(ctx context.Context, tenantID, userID int) (*User, error)
}
