package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/internal/store"
	"github.com/jjudge-oj/gatekeeper/types"
)

// Built-in authority names.
const (
	PermissionHealthCheck = "HEALTH_CHECK"
	PermissionViewUser    = "VIEW_USER"
	PermissionManageUsers = "MANAGE_USERS"
	PermissionManageRoles = "MANAGE_ROLES"

	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"

	SeedAdminEmail = "admin@example.com"
	SeedUserEmail  = "user@example.com"
)

// SeedOptions holds the passwords of the bootstrap accounts.
type SeedOptions struct {
	AdminPassword string
	UserPassword  string
}

// Seeder creates the bootstrap permissions, roles and accounts. Running
// it again leaves existing records untouched.
type Seeder struct {
	users       *UserService
	roles       *RoleService
	permissions *PermissionService
}

func NewSeeder(users *UserService, roles *RoleService, permissions *PermissionService) *Seeder {
	return &Seeder{users: users, roles: roles, permissions: permissions}
}

func (s *Seeder) Seed(ctx context.Context, opts SeedOptions) error {
	if opts.AdminPassword == "" || opts.UserPassword == "" {
		return fmt.Errorf("%w: seed passwords are required", ErrInvalidArgument)
	}

	perms := []struct{ name, description string }{
		{PermissionHealthCheck, "Permission to check server"},
		{PermissionViewUser, "Permission to view users"},
		{PermissionManageUsers, "Permission to create users and assign roles"},
		{PermissionManageRoles, "Permission to manage roles and permissions"},
	}
	for _, p := range perms {
		if _, err := s.permissions.ensurePermission(ctx, p.name, p.description, nil); err != nil {
			return fmt.Errorf("seed permission %s: %w", p.name, err)
		}
	}

	admin, err := s.ensureUser(ctx, SeedAdminEmail, opts.AdminPassword)
	if err != nil {
		return err
	}

	roles := []struct {
		name        string
		description string
		permissions []string
	}{
		{RoleAdmin, "Administrator role with full permissions", []string{PermissionHealthCheck, PermissionViewUser, PermissionManageUsers, PermissionManageRoles}},
		{RoleUser, "Regular user role with limited permissions", []string{PermissionViewUser}},
	}
	for _, r := range roles {
		if err := s.ensureRole(ctx, r.name, r.description, &admin.ID); err != nil {
			return err
		}
		for _, perm := range r.permissions {
			if err := s.roles.AssignPermission(ctx, r.name, perm, &admin.ID); err != nil {
				return fmt.Errorf("seed %s -> %s: %w", r.name, perm, err)
			}
		}
	}

	user, err := s.ensureUser(ctx, SeedUserEmail, opts.UserPassword)
	if err != nil {
		return err
	}

	if err := s.users.AssignRole(ctx, admin.ID, RoleAdmin, &admin.ID); err != nil {
		return fmt.Errorf("seed admin role: %w", err)
	}
	if err := s.users.AssignRole(ctx, user.ID, RoleUser, &admin.ID); err != nil {
		return fmt.Errorf("seed user role: %w", err)
	}
	return nil
}

func (s *Seeder) ensureUser(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.users.Create(ctx, NewUser{Email: email, Password: password}, nil)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrEmailInUse) {
		return types.User{}, fmt.Errorf("seed user %s: %w", email, err)
	}
	return s.users.GetByEmail(ctx, email)
}

func (s *Seeder) ensureRole(ctx context.Context, name, description string, actor *uuid.UUID) error {
	if _, err := s.roles.Get(ctx, name); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("seed role %s: %w", name, err)
	}
	if _, err := s.roles.Create(ctx, name, description, actor); err != nil {
		return fmt.Errorf("seed role %s: %w", name, err)
	}
	return nil
}
