package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/gatekeeper/internal/authz"
)

type HealthResponse struct {
	Status string `json:"status"`
	Scope  string `json:"scope,omitempty"`
	User   string `json:"user,omitempty"`
}

// Healthz reports liveness without authentication.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HealthRouter registers the guarded health checks.
func HealthRouter(r chi.Router, policy Policy) {
	r.With(Require(policy.HealthUser)).Get("/user", scopedHealth("user"))
	r.With(Require(policy.HealthAdmin)).Get("/admin", scopedHealth("admin"))
}

func scopedHealth(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Scope: scope}
		if p, ok := authz.PrincipalFromContext(r.Context()); ok {
			resp.User = p.Email
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
