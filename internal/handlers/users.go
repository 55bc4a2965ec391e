package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/internal/authz"
	"github.com/jjudge-oj/gatekeeper/internal/services"
	"github.com/jjudge-oj/gatekeeper/types"
)

// UserHandler serves user administration and self-service routes.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user routes. A caller may read their own record;
// everything else needs policy.ManageUsers.
func UserRouter(r chi.Router, handler *UserHandler, policy Policy) {
	manage := Require(policy.ManageUsers)

	r.With(manage).Post("/", handler.CreateUser)
	r.Get("/me", handler.Me)
	r.Route("/{userID}", func(r chi.Router) {
		r.With(Guard(func(r *http.Request) authz.Requirement {
			return authz.AnyOf(authz.OwnsResource(chi.URLParam(r, "userID")), policy.ManageUsers)
		})).Get("/", handler.GetUser)
		r.With(manage).Post("/roles", handler.AssignRole)
		r.With(manage).Delete("/roles/{roleName}", handler.RevokeRole)
	})
}

type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email,max=255"`
	Password string   `json:"password" validate:"required,min=6,max=72"`
	Roles    []string `json:"roles"`
}

type AssignRoleRequest struct {
	Role string `json:"role" validate:"required,max=50"`
}

// CreateUser registers a user. Without explicit roles the user gets
// ROLE_USER.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{services.DefaultUserRole}
	}

	user, err := h.users.Create(r.Context(), services.NewUser{
		Email:    req.Email,
		Password: req.Password,
		Roles:    roles,
	}, actorID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Me returns the authenticated caller's record.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, r, services.ErrPrincipalNotFound)
		return
	}
	user, err := h.users.Get(r.Context(), principal.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: user, Authorities: principal.Authorities()})
}

type MeResponse struct {
	types.User
	Authorities []string `json:"authorities"`
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}
	var req AssignRoleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.users.AssignRole(r.Context(), id, req.Role, actorID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeUser(w, r, id)
}

func (h *UserHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}
	if err := h.users.RevokeRole(r.Context(), id, chi.URLParam(r, "roleName"), actorID(r)); err != nil {
		respondError(w, r, err)
		return
	}
	h.writeUser(w, r, id)
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, &services.ValidationError{Fields: map[string]string{"userID": "userID must be a valid UUID"}})
		return uuid.Nil, false
	}
	return id, true
}
