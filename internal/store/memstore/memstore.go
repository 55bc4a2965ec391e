// Package memstore is an in-memory credential store with the same
// semantics as the PostgreSQL repositories. It backs STORE_DRIVER=memory
// and the handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/internal/store"
	"github.com/jjudge-oj/gatekeeper/types"
)

type roleKey struct {
	userID uuid.UUID
	roleID int64
}

type permKey struct {
	roleID       int64
	permissionID int64
}

// Store holds users, roles, permissions and both assignment tables.
// Assignments reference ids only.
type Store struct {
	mu sync.RWMutex

	users       map[uuid.UUID]types.User
	roles       map[int64]types.Role
	permissions map[int64]types.Permission
	userRoles   map[roleKey]types.RoleAssignment
	rolePerms   map[permKey]types.RolePermissionAssignment

	nextRoleID int64
	nextPermID int64
}

func New() *Store {
	return &Store{
		users:       make(map[uuid.UUID]types.User),
		roles:       make(map[int64]types.Role),
		permissions: make(map[int64]types.Permission),
		userRoles:   make(map[roleKey]types.RoleAssignment),
		rolePerms:   make(map[permKey]types.RolePermissionAssignment),
	}
}

// Users returns a user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Roles returns a role repository view of the store.
func (s *Store) Roles() *RoleRepository { return &RoleRepository{s: s} }

// Permissions returns a permission repository view of the store.
func (s *Store) Permissions() *PermissionRepository { return &PermissionRepository{s: s} }

type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]types.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Roles = nil
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.LastLogin = &at
	user.UpdatedAt = at
	r.s.users[id] = user
	return nil
}

func (r *UserRepository) AssignRole(ctx context.Context, userID uuid.UUID, roleID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[userID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := r.s.roles[roleID]; !ok {
		return store.ErrNotFound
	}
	key := roleKey{userID: userID, roleID: roleID}
	if _, ok := r.s.userRoles[key]; ok {
		return nil
	}
	r.s.userRoles[key] = types.RoleAssignment{UserID: userID, RoleID: roleID, AssignedAt: at}
	return nil
}

func (r *UserRepository) RevokeRole(ctx context.Context, userID uuid.UUID, roleID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := roleKey{userID: userID, roleID: roleID}
	if _, ok := r.s.userRoles[key]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.userRoles, key)
	return nil
}

func (r *UserRepository) ListRoleAssignments(ctx context.Context, userID uuid.UUID) ([]types.RoleAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var assignments []types.RoleAssignment
	for key, a := range r.s.userRoles {
		if key.userID != userID {
			continue
		}
		a.RoleName = r.s.roles[key.roleID].Name
		assignments = append(assignments, a)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].RoleName < assignments[j].RoleName })
	return assignments, nil
}

func (r *UserRepository) RoleNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	names := []string{}
	for key := range r.s.userRoles {
		if key.userID == userID {
			names = append(names, r.s.roles[key.roleID].Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *UserRepository) PermissionNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := make(map[string]struct{})
	for urKey := range r.s.userRoles {
		if urKey.userID != userID {
			continue
		}
		for rpKey := range r.s.rolePerms {
			if rpKey.roleID == urKey.roleID {
				seen[r.s.permissions[rpKey.permissionID].Name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type RoleRepository struct{ s *Store }

func (r *RoleRepository) GetByName(ctx context.Context, name string) (types.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return types.Role{}, store.ErrNotFound
}

func (r *RoleRepository) List(ctx context.Context) ([]types.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	roles := make([]types.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (r *RoleRepository) Create(ctx context.Context, role types.Role) (types.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.roles {
		if existing.Name == role.Name {
			return types.Role{}, store.ErrDuplicate
		}
	}
	r.s.nextRoleID++
	role.ID = r.s.nextRoleID
	role.CreatedAt = time.Now().UTC()
	role.Permissions = nil
	r.s.roles[role.ID] = role
	return role, nil
}

func (r *RoleRepository) AssignPermission(ctx context.Context, roleID, permissionID int64, at time.Time, by *uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[roleID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := r.s.permissions[permissionID]; !ok {
		return store.ErrNotFound
	}
	key := permKey{roleID: roleID, permissionID: permissionID}
	if _, ok := r.s.rolePerms[key]; ok {
		return nil
	}
	r.s.rolePerms[key] = types.RolePermissionAssignment{
		RoleID:       roleID,
		PermissionID: permissionID,
		AssignedAt:   at,
		AssignedBy:   by,
	}
	return nil
}

func (r *RoleRepository) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := permKey{roleID: roleID, permissionID: permissionID}
	if _, ok := r.s.rolePerms[key]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.rolePerms, key)
	return nil
}

func (r *RoleRepository) ListPermissionAssignments(ctx context.Context, roleID int64) ([]types.RolePermissionAssignment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var assignments []types.RolePermissionAssignment
	for key, a := range r.s.rolePerms {
		if key.roleID != roleID {
			continue
		}
		a.PermissionName = r.s.permissions[key.permissionID].Name
		assignments = append(assignments, a)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].PermissionName < assignments[j].PermissionName })
	return assignments, nil
}

type PermissionRepository struct{ s *Store }

func (r *PermissionRepository) GetByName(ctx context.Context, name string) (types.Permission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, perm := range r.s.permissions {
		if perm.Name == name {
			return perm, nil
		}
	}
	return types.Permission{}, store.ErrNotFound
}

func (r *PermissionRepository) List(ctx context.Context) ([]types.Permission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	perms := make([]types.Permission, 0, len(r.s.permissions))
	for _, perm := range r.s.permissions {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (r *PermissionRepository) Create(ctx context.Context, perm types.Permission) (types.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.permissions {
		if existing.Name == perm.Name {
			return types.Permission{}, store.ErrDuplicate
		}
	}
	r.s.nextPermID++
	perm.ID = r.s.nextPermID
	r.s.permissions[perm.ID] = perm
	return perm, nil
}
