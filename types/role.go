package types

import (
	"time"

	"github.com/google/uuid"
)

// RolePrefix is the naming convention for role names, e.g. ROLE_ADMIN.
const RolePrefix = "ROLE_"

// Role is a named bundle of permissions. In role-based deployments the
// role name itself is the checked authority.
type Role struct {
	ID          int64      `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`

	Permissions []RolePermissionAssignment `json:"permissions,omitempty" db:"-"`
}

// Permission is an atomic authority such as VIEW_USER.
type Permission struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`
}

// RolePermissionAssignment links a permission to a role and records who
// made the assignment.
type RolePermissionAssignment struct {
	RoleID         int64      `json:"roleId" db:"role_id"`
	PermissionID   int64      `json:"permissionId" db:"permission_id"`
	PermissionName string     `json:"permissionName" db:"permission_name"`
	AssignedAt     time.Time  `json:"assignedAt" db:"assigned_at"`
	AssignedBy     *uuid.UUID `json:"assignedBy,omitempty" db:"assigned_by"`
}
