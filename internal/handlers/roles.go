package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/gatekeeper/internal/services"
)

// RoleHandler serves role and permission administration.
type RoleHandler struct {
	roles       *services.RoleService
	permissions *services.PermissionService
}

func NewRoleHandler(roles *services.RoleService, permissions *services.PermissionService) *RoleHandler {
	return &RoleHandler{roles: roles, permissions: permissions}
}

// RoleRouter registers role routes, all guarded by policy.ManageRoles.
func RoleRouter(r chi.Router, handler *RoleHandler, policy Policy) {
	r.Use(Require(policy.ManageRoles))
	r.Get("/", handler.ListRoles)
	r.Post("/", handler.CreateRole)
	r.Get("/{roleName}", handler.GetRole)
	r.Post("/{roleName}/permissions", handler.AssignPermission)
	r.Delete("/{roleName}/permissions/{permissionName}", handler.RevokePermission)
}

// PermissionRouter registers permission routes, guarded by policy.ManageRoles.
func PermissionRouter(r chi.Router, handler *RoleHandler, policy Policy) {
	r.Use(Require(policy.ManageRoles))
	r.Get("/", handler.ListPermissions)
	r.Post("/", handler.CreatePermission)
}

type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
}

type CreatePermissionRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
}

type AssignPermissionRequest struct {
	Permission string `json:"permission" validate:"required,max=50"`
}

func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (h *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	role, err := h.roles.Create(r.Context(), req.Name, req.Description, actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *RoleHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.Get(r.Context(), chi.URLParam(r, "roleName"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// AssignPermission records the caller as the assigning actor.
func (h *RoleHandler) AssignPermission(w http.ResponseWriter, r *http.Request) {
	var req AssignPermissionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	roleName := chi.URLParam(r, "roleName")
	if err := h.roles.AssignPermission(r.Context(), roleName, req.Permission, actorID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeRole(w, r, roleName)
}

func (h *RoleHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	roleName := chi.URLParam(r, "roleName")
	if err := h.roles.RevokePermission(r.Context(), roleName, chi.URLParam(r, "permissionName"), actorID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeRole(w, r, roleName)
}

func (h *RoleHandler) writeRole(w http.ResponseWriter, r *http.Request, name string) {
	role, err := h.roles.Get(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.permissions.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (h *RoleHandler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	perm, err := h.permissions.Create(r.Context(), req.Name, req.Description, actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, perm)
}
