package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/types"
)

// UserRepository defines persistence operations for users and role assignments.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	AssignRole(ctx context.Context, userID uuid.UUID, roleID int64, at time.Time) error
	RevokeRole(ctx context.Context, userID uuid.UUID, roleID int64) error
	ListRoleAssignments(ctx context.Context, userID uuid.UUID) ([]types.RoleAssignment, error)
	RoleNames(ctx context.Context, userID uuid.UUID) ([]string, error)
	PermissionNames(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// RoleRepository defines persistence operations for roles and permission assignments.
type RoleRepository interface {
	GetByName(ctx context.Context, name string) (types.Role, error)
	List(ctx context.Context) ([]types.Role, error)
	Create(ctx context.Context, role types.Role) (types.Role, error)
	AssignPermission(ctx context.Context, roleID, permissionID int64, at time.Time, by *uuid.UUID) error
	RevokePermission(ctx context.Context, roleID, permissionID int64) error
	ListPermissionAssignments(ctx context.Context, roleID int64) ([]types.RolePermissionAssignment, error)
}

// PermissionRepository defines persistence operations for permissions.
type PermissionRepository interface {
	GetByName(ctx context.Context, name string) (types.Permission, error)
	List(ctx context.Context) ([]types.Permission, error)
	Create(ctx context.Context, perm types.Permission) (types.Permission, error)
}
