package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func principalWith(authorities ...string) *Principal {
	return NewPrincipal(uuid.New(), "subject", "user@example.com", "hash", authorities)
}

func TestAuthorizeAnonymousAlwaysDenied(t *testing.T) {
	reqs := []Requirement{
		HasRole("ADMIN"),
		HasAnyRole("ADMIN", "USER"),
		HasAllRoles("ADMIN"),
		HasPermission("VIEW_USER"),
		OwnsResource(uuid.NewString()),
		AnyOf(HasRole("ADMIN")),
		AllOf(HasRole("ADMIN")),
	}
	for _, req := range reqs {
		assert.False(t, Authorize(nil, req), req.String())
	}
}

func TestAuthorizeNilRequirementDenied(t *testing.T) {
	assert.False(t, Authorize(principalWith("ROLE_ADMIN"), nil))
}

func TestHasRole(t *testing.T) {
	assert.True(t, Authorize(principalWith("ADMIN"), HasRole("ADMIN")))
	assert.True(t, Authorize(principalWith("ROLE_ADMIN"), HasRole("ADMIN")))
	assert.True(t, Authorize(principalWith("ROLE_ADMIN"), HasRole("ROLE_ADMIN")))
	assert.False(t, Authorize(principalWith("ROLE_USER"), HasRole("ADMIN")))
	assert.False(t, Authorize(principalWith("ADMIN"), HasRole("")))
}

func TestHasAnyAndAllRoles(t *testing.T) {
	p := principalWith("ROLE_USER", "ROLE_AUDITOR")

	assert.True(t, Authorize(p, HasAnyRole("ADMIN", "USER")))
	assert.False(t, Authorize(p, HasAnyRole("ADMIN")))
	assert.False(t, Authorize(p, HasAnyRole()))

	assert.True(t, Authorize(p, HasAllRoles("USER", "AUDITOR")))
	assert.False(t, Authorize(p, HasAllRoles("USER", "ADMIN")))
	assert.False(t, Authorize(p, HasAllRoles()))
}

func TestHasPermission(t *testing.T) {
	p := principalWith("VIEW_USER")
	assert.True(t, Authorize(p, HasPermission("VIEW_USER")))
	assert.False(t, Authorize(p, HasPermission("HEALTH_CHECK")))
	assert.False(t, Authorize(p, HasPermission(" ")))
}

func TestOwnsResource(t *testing.T) {
	p := principalWith()
	assert.True(t, Authorize(p, OwnsResource(p.ID.String())))
	assert.False(t, Authorize(p, OwnsResource(uuid.NewString())))
	assert.False(t, Authorize(p, OwnsResource("not-a-uuid")))
}

type countingRequirement struct {
	result bool
	calls  *int
}

func (c countingRequirement) satisfiedBy(*Principal) bool {
	*c.calls++
	return c.result
}

func (c countingRequirement) String() string { return "counting" }

func TestCompositeShortCircuits(t *testing.T) {
	p := principalWith("VIEW_USER")

	calls := 0
	assert.True(t, Authorize(p, AnyOf(HasPermission("VIEW_USER"), countingRequirement{result: true, calls: &calls})))
	assert.Equal(t, 0, calls)

	assert.False(t, Authorize(p, AllOf(HasPermission("MISSING"), countingRequirement{result: true, calls: &calls})))
	assert.Equal(t, 0, calls)

	assert.True(t, Authorize(p, AllOf(HasPermission("VIEW_USER"), countingRequirement{result: true, calls: &calls})))
	assert.Equal(t, 1, calls)

	assert.False(t, Authorize(p, AllOf()))
	assert.False(t, Authorize(p, AnyOf()))
}

func TestPrincipalDeduplicatesAuthorities(t *testing.T) {
	p := principalWith("VIEW_USER", "VIEW_USER", "", "HEALTH_CHECK")
	assert.Equal(t, []string{"HEALTH_CHECK", "VIEW_USER"}, p.Authorities())
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	p := principalWith("VIEW_USER").WithoutCredentials()
	ctx := WithPrincipal(context.Background(), p)
	got, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Empty(t, got.CredentialHash)
}
