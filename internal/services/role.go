package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/internal/store"
	"github.com/jjudge-oj/gatekeeper/types"
)

// NormalizeRoleName upper-cases a role name and applies the ROLE_ prefix.
func NormalizeRoleName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if !strings.HasPrefix(name, types.RolePrefix) {
		name = types.RolePrefix + name
	}
	return name
}

// NormalizePermissionName upper-cases a permission name.
func NormalizePermissionName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// RoleService manages roles and their permission assignments.
type RoleService struct {
	roles       RoleRepository
	permissions PermissionRepository
	audit       *Auditor
	now         func() time.Time
}

func NewRoleService(roles RoleRepository, permissions PermissionRepository, audit *Auditor) *RoleService {
	return &RoleService{
		roles:       roles,
		permissions: permissions,
		audit:       audit,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *RoleService) Create(ctx context.Context, name, description string, actor *uuid.UUID) (types.Role, error) {
	name = NormalizeRoleName(name)
	if name == "" || name == types.RolePrefix {
		return types.Role{}, fmt.Errorf("%w: role name is required", ErrInvalidArgument)
	}
	role, err := s.roles.Create(ctx, types.Role{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   actor,
	})
	if err != nil {
		return types.Role{}, err
	}
	s.audit.Record(ctx, AuditEvent{Type: EventRoleCreated, ActorID: actorString(actor), Role: role.Name})
	return role, nil
}

// Get returns a role with its permission assignments.
func (s *RoleService) Get(ctx context.Context, name string) (types.Role, error) {
	role, err := s.roles.GetByName(ctx, NormalizeRoleName(name))
	if err != nil {
		return types.Role{}, err
	}
	perms, err := s.roles.ListPermissionAssignments(ctx, role.ID)
	if err != nil {
		return types.Role{}, fmt.Errorf("list permission assignments: %w", err)
	}
	role.Permissions = perms
	return role, nil
}

// List returns every role with its permission assignments.
func (s *RoleService) List(ctx context.Context) ([]types.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		perms, err := s.roles.ListPermissionAssignments(ctx, roles[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list permission assignments: %w", err)
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

// AssignPermission grants permissionName to roleName, recording the time
// and the assigning actor.
func (s *RoleService) AssignPermission(ctx context.Context, roleName, permissionName string, actor *uuid.UUID) error {
	role, perm, err := s.resolve(ctx, roleName, permissionName)
	if err != nil {
		return err
	}
	if err := s.roles.AssignPermission(ctx, role.ID, perm.ID, s.now(), actor); err != nil {
		return fmt.Errorf("assign permission: %w", err)
	}
	s.audit.Record(ctx, AuditEvent{Type: EventPermissionAssigned, ActorID: actorString(actor), Role: role.Name, Permission: perm.Name})
	return nil
}

func (s *RoleService) RevokePermission(ctx context.Context, roleName, permissionName string, actor *uuid.UUID) error {
	role, perm, err := s.resolve(ctx, roleName, permissionName)
	if err != nil {
		return err
	}
	if err := s.roles.RevokePermission(ctx, role.ID, perm.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, AuditEvent{Type: EventPermissionRevoked, ActorID: actorString(actor), Role: role.Name, Permission: perm.Name})
	return nil
}

func (s *RoleService) resolve(ctx context.Context, roleName, permissionName string) (types.Role, types.Permission, error) {
	roleName = NormalizeRoleName(roleName)
	permissionName = NormalizePermissionName(permissionName)
	if roleName == "" || permissionName == "" {
		return types.Role{}, types.Permission{}, fmt.Errorf("%w: role and permission names are required", ErrInvalidArgument)
	}
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		return types.Role{}, types.Permission{}, err
	}
	perm, err := s.permissions.GetByName(ctx, permissionName)
	if err != nil {
		return types.Role{}, types.Permission{}, err
	}
	return role, perm, nil
}

// PermissionService manages permissions.
type PermissionService struct {
	permissions PermissionRepository
	audit       *Auditor
}

func NewPermissionService(permissions PermissionRepository, audit *Auditor) *PermissionService {
	return &PermissionService{permissions: permissions, audit: audit}
}

func (s *PermissionService) Create(ctx context.Context, name, description string, actor *uuid.UUID) (types.Permission, error) {
	name = NormalizePermissionName(name)
	if name == "" {
		return types.Permission{}, fmt.Errorf("%w: permission name is required", ErrInvalidArgument)
	}
	perm, err := s.permissions.Create(ctx, types.Permission{Name: name, Description: strings.TrimSpace(description)})
	if err != nil {
		return types.Permission{}, err
	}
	s.audit.Record(ctx, AuditEvent{Type: EventPermissionCreated, ActorID: actorString(actor), Permission: perm.Name})
	return perm, nil
}

func (s *PermissionService) GetByName(ctx context.Context, name string) (types.Permission, error) {
	return s.permissions.GetByName(ctx, NormalizePermissionName(name))
}

func (s *PermissionService) List(ctx context.Context) ([]types.Permission, error) {
	return s.permissions.List(ctx)
}

// ensurePermission returns the named permission, creating it when missing.
func (s *PermissionService) ensurePermission(ctx context.Context, name, description string, actor *uuid.UUID) (types.Permission, error) {
	perm, err := s.GetByName(ctx, name)
	if err == nil {
		return perm, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Permission{}, err
	}
	return s.Create(ctx, name, description, actor)
}
