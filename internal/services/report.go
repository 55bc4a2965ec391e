package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jjudge-oj/gatekeeper/types"
)

// UserAccess is one user's row in an access snapshot.
type UserAccess struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	Roles       []string   `json:"roles"`
	Authorities []string   `json:"authorities"`
}

// AccessSnapshot lists who can do what under the deployment's model.
type AccessSnapshot struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	Model       AuthorityModel `json:"model"`
	Users       []UserAccess   `json:"users"`
	Roles       []types.Role   `json:"roles"`
}

// ObjectWriter stores an object. *storage.Storage satisfies it.
type ObjectWriter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// AccessReporter builds access-review snapshots.
type AccessReporter struct {
	users  *UserService
	roles  *RoleService
	loader *IdentityLoader
}

func NewAccessReporter(users *UserService, roles *RoleService, loader *IdentityLoader) *AccessReporter {
	return &AccessReporter{users: users, roles: roles, loader: loader}
}

func (r *AccessReporter) Snapshot(ctx context.Context) (AccessSnapshot, error) {
	users, err := r.users.List(ctx)
	if err != nil {
		return AccessSnapshot{}, fmt.Errorf("list users: %w", err)
	}
	roles, err := r.roles.List(ctx)
	if err != nil {
		return AccessSnapshot{}, fmt.Errorf("list roles: %w", err)
	}

	snapshot := AccessSnapshot{
		GeneratedAt: time.Now().UTC(),
		Model:       r.loader.Model(),
		Users:       make([]UserAccess, 0, len(users)),
		Roles:       roles,
	}
	for _, u := range users {
		full, err := r.users.Get(ctx, u.ID)
		if err != nil {
			return AccessSnapshot{}, fmt.Errorf("load user %s: %w", u.ID, err)
		}
		principal, err := r.loader.LoadBySubject(ctx, u.ID.String())
		if err != nil {
			return AccessSnapshot{}, fmt.Errorf("resolve authorities for %s: %w", u.ID, err)
		}
		roleNames := make([]string, 0, len(full.Roles))
		for _, a := range full.Roles {
			roleNames = append(roleNames, a.RoleName)
		}
		snapshot.Users = append(snapshot.Users, UserAccess{
			ID:          u.ID.String(),
			Email:       u.Email,
			LastLogin:   u.LastLogin,
			Roles:       roleNames,
			Authorities: principal.Authorities(),
		})
	}
	return snapshot, nil
}

// Export writes a snapshot as JSON under key and returns it.
func (r *AccessReporter) Export(ctx context.Context, w ObjectWriter, key string) (AccessSnapshot, error) {
	snapshot, err := r.Snapshot(ctx)
	if err != nil {
		return AccessSnapshot{}, err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return AccessSnapshot{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := w.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return AccessSnapshot{}, fmt.Errorf("upload snapshot: %w", err)
	}
	return snapshot, nil
}
