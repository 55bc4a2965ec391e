package authz

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/types"
)

// Requirement is a declared access condition for a protected operation.
type Requirement interface {
	satisfiedBy(p *Principal) bool
	String() string
}

// Authorize reports whether p satisfies req. An absent principal or an
// absent requirement never authorizes.
func Authorize(p *Principal, req Requirement) bool {
	if p == nil || req == nil {
		return false
	}
	return req.satisfiedBy(p)
}

type hasRole struct{ name string }

// HasRole is satisfied when the principal holds the role. The ROLE_ prefix
// is optional: HasRole("ADMIN") matches both ADMIN and ROLE_ADMIN.
func HasRole(name string) Requirement {
	return hasRole{name: strings.TrimSpace(name)}
}

func (r hasRole) satisfiedBy(p *Principal) bool {
	if r.name == "" {
		return false
	}
	if p.HasAuthority(r.name) {
		return true
	}
	if !strings.HasPrefix(r.name, types.RolePrefix) {
		return p.HasAuthority(types.RolePrefix + r.name)
	}
	return false
}

func (r hasRole) String() string { return fmt.Sprintf("hasRole(%s)", r.name) }

type hasAnyRole struct{ roles []hasRole }

// HasAnyRole is satisfied when the principal holds at least one of names.
func HasAnyRole(names ...string) Requirement {
	return hasAnyRole{roles: toRoles(names)}
}

func (r hasAnyRole) satisfiedBy(p *Principal) bool {
	for _, role := range r.roles {
		if role.satisfiedBy(p) {
			return true
		}
	}
	return false
}

func (r hasAnyRole) String() string { return fmt.Sprintf("hasAnyRole%v", roleNames(r.roles)) }

type hasAllRoles struct{ roles []hasRole }

// HasAllRoles is satisfied when the principal holds every one of names.
// An empty list is never satisfied.
func HasAllRoles(names ...string) Requirement {
	return hasAllRoles{roles: toRoles(names)}
}

func (r hasAllRoles) satisfiedBy(p *Principal) bool {
	if len(r.roles) == 0 {
		return false
	}
	for _, role := range r.roles {
		if !role.satisfiedBy(p) {
			return false
		}
	}
	return true
}

func (r hasAllRoles) String() string { return fmt.Sprintf("hasAllRoles%v", roleNames(r.roles)) }

type hasPermission struct{ name string }

// HasPermission is satisfied when the principal's authority set contains name.
func HasPermission(name string) Requirement {
	return hasPermission{name: strings.TrimSpace(name)}
}

func (r hasPermission) satisfiedBy(p *Principal) bool {
	return r.name != "" && p.HasAuthority(r.name)
}

func (r hasPermission) String() string { return fmt.Sprintf("hasPermission(%s)", r.name) }

type ownsResource struct{ ownerID string }

// OwnsResource is satisfied when the principal's id equals ownerID.
func OwnsResource(ownerID string) Requirement {
	return ownsResource{ownerID: strings.TrimSpace(ownerID)}
}

func (r ownsResource) satisfiedBy(p *Principal) bool {
	id, err := uuid.Parse(r.ownerID)
	if err != nil {
		return false
	}
	return p.ID != uuid.Nil && p.ID == id
}

func (r ownsResource) String() string { return fmt.Sprintf("ownsResource(%s)", r.ownerID) }

type anyOf struct{ reqs []Requirement }

// AnyOf is satisfied by the first satisfied requirement, left to right.
func AnyOf(reqs ...Requirement) Requirement {
	return anyOf{reqs: reqs}
}

func (r anyOf) satisfiedBy(p *Principal) bool {
	for _, req := range r.reqs {
		if req != nil && req.satisfiedBy(p) {
			return true
		}
	}
	return false
}

func (r anyOf) String() string { return fmt.Sprintf("anyOf%v", r.reqs) }

type allOf struct{ reqs []Requirement }

// AllOf stops at the first unsatisfied requirement, left to right. An empty
// list is never satisfied.
func AllOf(reqs ...Requirement) Requirement {
	return allOf{reqs: reqs}
}

func (r allOf) satisfiedBy(p *Principal) bool {
	if len(r.reqs) == 0 {
		return false
	}
	for _, req := range r.reqs {
		if req == nil || !req.satisfiedBy(p) {
			return false
		}
	}
	return true
}

func (r allOf) String() string { return fmt.Sprintf("allOf%v", r.reqs) }

func toRoles(names []string) []hasRole {
	roles := make([]hasRole, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		roles = append(roles, hasRole{name: name})
	}
	return roles
}

func roleNames(roles []hasRole) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.name)
	}
	return names
}
