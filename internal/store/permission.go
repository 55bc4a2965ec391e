package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jjudge-oj/gatekeeper/types"
)

// PermissionRepository handles persistence for permissions.
type PermissionRepository struct {
	db *sql.DB
}

func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) GetByName(ctx context.Context, name string) (types.Permission, error) {
	const query = `SELECT id, name, description FROM permissions WHERE name = $1`
	var perm types.Permission
	err := r.db.QueryRowContext(ctx, query, name).Scan(&perm.ID, &perm.Name, &perm.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Permission{}, ErrNotFound
		}
		return types.Permission{}, err
	}
	return perm, nil
}

func (r *PermissionRepository) List(ctx context.Context) ([]types.Permission, error) {
	const query = `SELECT id, name, description FROM permissions ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []types.Permission
	for rows.Next() {
		var perm types.Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func (r *PermissionRepository) Create(ctx context.Context, perm types.Permission) (types.Permission, error) {
	const query = `
		INSERT INTO permissions (name, description)
		VALUES ($1, $2)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		perm.Name,
		perm.Description,
	).Scan(&perm.ID); err != nil {
		return types.Permission{}, mapWriteError(err)
	}
	return perm, nil
}
