package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/types"
)

// RoleRepository handles persistence for roles and their permission assignments.
type RoleRepository struct {
	db *sql.DB
}

func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func scanRole(row interface{ Scan(...any) error }) (types.Role, error) {
	var (
		role      types.Role
		createdBy uuid.NullUUID
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &createdBy, &role.CreatedAt); err != nil {
		return types.Role{}, err
	}
	if createdBy.Valid {
		id := createdBy.UUID
		role.CreatedBy = &id
	}
	return role, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (types.Role, error) {
	const query = `
		SELECT id, name, description, created_by, created_at
		FROM roles
		WHERE name = $1`
	role, err := scanRole(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]types.Role, error) {
	const query = `
		SELECT id, name, description, created_by, created_at
		FROM roles
		ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []types.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) Create(ctx context.Context, role types.Role) (types.Role, error) {
	role.CreatedAt = time.Now().UTC()

	var createdBy uuid.NullUUID
	if role.CreatedBy != nil {
		createdBy = uuid.NullUUID{UUID: *role.CreatedBy, Valid: true}
	}

	const query = `
		INSERT INTO roles (name, description, created_by, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		role.Name,
		role.Description,
		createdBy,
		role.CreatedAt,
	).Scan(&role.ID); err != nil {
		return types.Role{}, mapWriteError(err)
	}
	return role, nil
}

// AssignPermission links a permission to a role. Re-assigning keeps the
// original audit stamp.
func (r *RoleRepository) AssignPermission(ctx context.Context, roleID, permissionID int64, at time.Time, by *uuid.UUID) error {
	var assignedBy uuid.NullUUID
	if by != nil {
		assignedBy = uuid.NullUUID{UUID: *by, Valid: true}
	}
	const query = `
		INSERT INTO role_permissions (role_id, permission_id, assigned_at, assigned_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (role_id, permission_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, roleID, permissionID, at, assignedBy)
	return err
}

func (r *RoleRepository) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	const query = `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`
	result, err := r.db.ExecContext(ctx, query, roleID, permissionID)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *RoleRepository) ListPermissionAssignments(ctx context.Context, roleID int64) ([]types.RolePermissionAssignment, error) {
	const query = `
		SELECT rp.role_id, rp.permission_id, p.name, rp.assigned_at, rp.assigned_by
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name`
	rows, err := r.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []types.RolePermissionAssignment
	for rows.Next() {
		var (
			a  types.RolePermissionAssignment
			by uuid.NullUUID
		)
		if err := rows.Scan(&a.RoleID, &a.PermissionID, &a.PermissionName, &a.AssignedAt, &by); err != nil {
			return nil, err
		}
		if by.Valid {
			id := by.UUID
			a.AssignedBy = &id
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
