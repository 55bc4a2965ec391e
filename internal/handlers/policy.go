package handlers

import (
	"github.com/jjudge-oj/gatekeeper/internal/authz"
	"github.com/jjudge-oj/gatekeeper/internal/services"
)

// Policy holds the requirements guarding the built-in routes.
type Policy struct {
	ManageUsers authz.Requirement
	ManageRoles authz.Requirement
	HealthUser  authz.Requirement
	HealthAdmin authz.Requirement
}

// PolicyFor returns the route requirements for an authority model.
// Role-based deployments check role names; permission-based ones check
// permissions reached through roles.
func PolicyFor(model services.AuthorityModel) Policy {
	if model == services.RoleBased {
		return Policy{
			ManageUsers: authz.HasRole("ADMIN"),
			ManageRoles: authz.HasRole("ADMIN"),
			HealthUser:  authz.HasAnyRole("USER", "ADMIN"),
			HealthAdmin: authz.HasRole("ADMIN"),
		}
	}
	return Policy{
		ManageUsers: authz.HasPermission(services.PermissionManageUsers),
		ManageRoles: authz.HasPermission(services.PermissionManageRoles),
		HealthUser:  authz.HasPermission(services.PermissionViewUser),
		HealthAdmin: authz.HasPermission(services.PermissionHealthCheck),
	}
}
