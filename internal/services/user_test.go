package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserNormalizesEmail(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	user, err := f.users.Create(ctx, NewUser{Email: "  New.User@Example.COM ", Password: "password1", Roles: []string{DefaultUserRole}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "new.user@example.com", user.Email)
	assert.NotEqual(t, "password1", user.PasswordHash)
	require.Len(t, user.Roles, 1)
	assert.Equal(t, RoleUser, user.Roles[0].RoleName)
	assert.False(t, user.Roles[0].AssignedAt.IsZero())

	_, err = f.users.Create(ctx, NewUser{Email: "NEW.USER@example.com", Password: "password2"}, nil)
	require.ErrorIs(t, err, ErrEmailInUse)
}

func TestCreateUserWithUnknownRoleWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()
	before := len(f.publisher.types())

	_, err := f.users.Create(ctx, NewUser{Email: "x@example.com", Password: "secret1", Roles: []string{DefaultUserRole, "BOGUS"}}, nil)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.users.GetByEmail(ctx, "x@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, f.publisher.types(), before)

	user, err := f.users.Create(ctx, NewUser{Email: "x@example.com", Password: "secret1", Roles: []string{DefaultUserRole}}, nil)
	require.NoError(t, err)
	require.Len(t, user.Roles, 1)
}

func TestCreateUserRequiresFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Create(context.Background(), NewUser{Email: " ", Password: "x"}, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	user, err := f.users.Authenticate(ctx, "USER@example.com", "user123")
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)

	stored, err := f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)

	_, err = f.users.Authenticate(ctx, SeedUserEmail, "wrong")
	require.ErrorIs(t, err, ErrBadCredentials)

	_, err = f.users.Authenticate(ctx, "ghost@example.com", "user123")
	require.ErrorIs(t, err, ErrBadCredentials)

	_, err = f.users.Authenticate(ctx, "", "")
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestAssignRoleErrors(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	user, err := f.users.GetByEmail(ctx, SeedUserEmail)
	require.NoError(t, err)

	require.ErrorIs(t, f.users.AssignRole(ctx, user.ID, "MISSING", nil), store.ErrNotFound)
	require.ErrorIs(t, f.users.AssignRole(ctx, uuid.New(), "USER", nil), store.ErrNotFound)
	require.ErrorIs(t, f.users.AssignRole(ctx, user.ID, " ", nil), ErrInvalidArgument)
	require.ErrorIs(t, f.users.RevokeRole(ctx, user.ID, "ADMIN", nil), store.ErrNotFound)

	// Assigning a held role again is a no-op.
	require.NoError(t, f.users.AssignRole(ctx, user.ID, "USER", nil))
	stored, err := f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Roles, 1)
}

func TestRolePermissionAssignmentStampsActor(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	admin, err := f.users.GetByEmail(ctx, SeedAdminEmail)
	require.NoError(t, err)

	_, err = f.permissions.Create(ctx, "export_reports", "Export reports", &admin.ID)
	require.NoError(t, err)
	require.NoError(t, f.roles.AssignPermission(ctx, "user", "EXPORT_REPORTS", &admin.ID))

	role, err := f.roles.Get(ctx, RoleUser)
	require.NoError(t, err)
	var found bool
	for _, a := range role.Permissions {
		if a.PermissionName == "EXPORT_REPORTS" {
			found = true
			require.NotNil(t, a.AssignedBy)
			assert.Equal(t, admin.ID, *a.AssignedBy)
			assert.False(t, a.AssignedAt.IsZero())
		}
	}
	assert.True(t, found)

	require.NoError(t, f.roles.RevokePermission(ctx, RoleUser, "EXPORT_REPORTS", &admin.ID))
	require.ErrorIs(t, f.roles.RevokePermission(ctx, RoleUser, "EXPORT_REPORTS", &admin.ID), store.ErrNotFound)
}

func TestCreateRoleNormalizesName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role, err := f.roles.Create(ctx, " auditor ", "Reads things", nil)
	require.NoError(t, err)
	assert.Equal(t, "ROLE_AUDITOR", role.Name)

	_, err = f.roles.Create(ctx, "ROLE_AUDITOR", "", nil)
	require.ErrorIs(t, err, store.ErrDuplicate)

	_, err = f.roles.Create(ctx, "", "", nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.seed(t)
	ctx := context.Background()

	users, err := f.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	roles, err := f.roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, RoleAdmin, roles[0].Name)
	assert.Len(t, roles[0].Permissions, 4)
	assert.Equal(t, RoleUser, roles[1].Name)
	assert.Len(t, roles[1].Permissions, 1)

	perms, err := f.permissions.List(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, 4)
}

func TestAuditEventsPublished(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	_, err := f.users.Authenticate(context.Background(), SeedAdminEmail, "admin123")
	require.NoError(t, err)

	got := f.publisher.types()
	assert.Contains(t, got, EventPermissionCreated)
	assert.Contains(t, got, EventUserCreated)
	assert.Contains(t, got, EventRoleCreated)
	assert.Contains(t, got, EventPermissionAssigned)
	assert.Contains(t, got, EventRoleAssigned)
	assert.Equal(t, EventUserLogin, got[len(got)-1])
}

func TestNilAuditorDropsEvents(t *testing.T) {
	var a *Auditor
	a.Record(context.Background(), AuditEvent{Type: EventUserLogin})
	NewAuditor(nil, "audit").Record(context.Background(), AuditEvent{Type: EventUserLogin})
}
