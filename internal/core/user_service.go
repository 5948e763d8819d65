package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userService struct {
	pool *pgxpool.Pool
}

// NewUserService constructs a UserService backed by PostgreSQL.
func NewUserService(pool *pgxpool.Pool) UserService {
	return &userService{pool: pool}
}

func (s *userService) GetByID(ctx context.Context, tenantID, userID int) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, username, role, is_active
		FROM users
		WHERE id = $1 AND tenant_id = $2`,
		userID, tenantID,
	).Scan(&u.ID, &u.TenantID, &u.Username, &u.Role, &u.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("user %d", userID)
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return u, nil
}

func (s *userService) RequireActive(ctx context.Context, tenantID, userID int) (*User, error) {
	u, err := s.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, validationError("user %s is inactive", u.Username)
	}
	return u, nil
}
