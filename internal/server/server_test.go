package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/config"
	"github.com/jjudge-oj/gatekeeper/internal/handlers"
	"github.com/jjudge-oj/gatekeeper/internal/metrics"
	"github.com/jjudge-oj/gatekeeper/internal/services"
	"github.com/jjudge-oj/gatekeeper/internal/store/memstore"
	"github.com/jjudge-oj/gatekeeper/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-signing-secret"

func testConfig(model string) config.Config {
	return config.Config{
		StoreDriver: config.StoreDriverMemory,
		Auth: config.AuthConfig{
			JWTSecret: testSecret,
			TokenTTL:  time.Hour,
			Model:     model,
			PublicPaths: []string{
				"/api/v1/authentication/login",
				"/api/v1/authentication/validate",
				"/healthz",
			},
		},
		MQ: config.MQConfig{Driver: config.MQDriverNone, AuditChannel: "audit"},
	}
}

func newTestApp(t *testing.T, cfg config.Config) (http.Handler, *Services) {
	t.Helper()
	svc, err := NewServices(cfg, MemoryStores(memstore.New()), nil)
	require.NoError(t, err)
	svc.Users.WithHashCost(bcrypt.MinCost)
	require.NoError(t, svc.Seeder.Seed(context.Background(), services.SeedOptions{AdminPassword: "admin123", UserPassword: "user123"}))
	return NewHandler(cfg, svc, zap.NewNop(), nil), svc
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, email, password string) handlers.LoginResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/authentication/login", "", handlers.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handlers.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp
}

func failure(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestNonAdminDeniedAdminRoute(t *testing.T) {
	h, _ := newTestApp(t, testConfig(config.AuthzModelRBAC))

	user := login(t, h, services.SeedUserEmail, "user123")
	rec := do(t, h, http.MethodGet, "/api/v1/health/admin", user.Token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	resp := failure(t, rec)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Forbidden", resp.StatusText)
	assert.Equal(t, handlers.MsgAccessDenied, resp.Message)
	assert.Equal(t, "/api/v1/health/admin", resp.RequestPath)
	assert.False(t, resp.Timestamp.IsZero())

	admin := login(t, h, services.SeedAdminEmail, "admin123")
	rec = do(t, h, http.MethodGet, "/api/v1/health/admin", admin.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/health/user", user.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGarbageTokenRejectedEverywhere(t *testing.T) {
	h, svc := newTestApp(t, testConfig(config.AuthzModelPBAC))

	for _, path := range []string{"/healthz", "/api/v1/health/user", "/api/v1/user/me"} {
		rec := do(t, h, http.MethodGet, path, "garbage", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, handlers.MsgInvalidToken, failure(t, rec).Message)
	}

	// Login must not run behind a rejected token.
	rec := do(t, h, http.MethodPost, "/api/v1/authentication/login", "garbage",
		handlers.LoginRequest{Email: services.SeedUserEmail, Password: "user123"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, handlers.MsgInvalidToken, failure(t, rec).Message)

	user, err := svc.Users.GetByEmail(context.Background(), services.SeedUserEmail)
	require.NoError(t, err)
	assert.Nil(t, user.LastLogin)
}

func TestPublicEndpointsAllowAnonymous(t *testing.T) {
	h, _ := newTestApp(t, testConfig(config.AuthzModelPBAC))

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := login(t, h, services.SeedUserEmail, "user123")
	_, err := uuid.Parse(resp.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
}

func TestAnonymousProtectedRouteUnauthorized(t *testing.T) {
	h, _ := newTestApp(t, testConfig(config.AuthzModelPBAC))

	for _, path := range []string{"/api/v1/health/user", "/api/v1/user/me", "/api/v1/roles", "/api/v1/unknown"} {
		rec := do(t, h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, handlers.MsgBadCredentials, failure(t, rec).Message)
	}
}

func TestPermissionGrantAndRevoke(t *testing.T) {
	h, svc := newTestApp(t, testConfig(config.AuthzModelPBAC))
	ctx := context.Background()

	user, err := svc.Users.Create(ctx, services.NewUser{Email: "reader@example.com", Password: "reader123"}, nil)
	require.NoError(t, err)

	token := login(t, h, "reader@example.com", "reader123").Token
	rec := do(t, h, http.MethodGet, "/api/v1/health/user", token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, svc.Roles.AssignPermission(ctx, services.RoleUser, services.PermissionViewUser, nil))
	require.NoError(t, svc.Users.AssignRole(ctx, user.ID, services.RoleUser, nil))

	rec = do(t, h, http.MethodGet, "/api/v1/health/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, svc.Users.RevokeRole(ctx, user.ID, services.RoleUser, nil))

	rec = do(t, h, http.MethodGet, "/api/v1/health/user", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExpiredAndOrphanTokens(t *testing.T) {
	h, svc := newTestApp(t, testConfig(config.AuthzModelPBAC))

	user, err := svc.Users.GetByEmail(context.Background(), services.SeedUserEmail)
	require.NoError(t, err)

	past, err := services.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	past.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, err := past.Issue(user.ID.String())
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/api/v1/user/me", expired, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, handlers.MsgInvalidToken, failure(t, rec).Message)

	orphan, err := svc.Tokens.Issue(uuid.NewString())
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/api/v1/user/me", orphan, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, handlers.MsgBadCredentials, failure(t, rec).Message)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	h, _ := newTestApp(t, testConfig(config.AuthzModelPBAC))

	for _, req := range []handlers.LoginRequest{
		{Email: services.SeedUserEmail, Password: "wrong"},
		{Email: "nobody@example.com", Password: "user123"},
	} {
		rec := do(t, h, http.MethodPost, "/api/v1/authentication/login", "", req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, handlers.MsgBadCredentials, failure(t, rec).Message)
	}

	rec := do(t, h, http.MethodPost, "/api/v1/authentication/login", "", handlers.LoginRequest{Email: "not-an-email"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg := failure(t, rec).Message
	assert.Contains(t, msg, "email must be a valid email address")
	assert.Contains(t, msg, "password is required")
}

func TestLoginRateLimited(t *testing.T) {
	cfg := testConfig(config.AuthzModelPBAC)
	cfg.Auth.LoginRateLimit = 2
	h, _ := newTestApp(t, cfg)

	body := handlers.LoginRequest{Email: services.SeedUserEmail, Password: "wrong"}
	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/api/v1/authentication/login", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/authentication/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	h, svc := newTestApp(t, testConfig(config.AuthzModelPBAC))

	rec := do(t, h, http.MethodPost, "/api/v1/authentication/validate", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Token cannot be null or empty", failure(t, rec).Message)

	rec = do(t, h, http.MethodPost, "/api/v1/authentication/validate", "", handlers.ValidateRequest{Token: "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/authentication/validate", "", handlers.ValidateRequest{Token: "a.b.c"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, handlers.MsgInvalidToken, failure(t, rec).Message)

	subject := uuid.NewString()
	token, err := svc.Tokens.Issue(subject)
	require.NoError(t, err)

	rec = do(t, h, http.MethodPost, "/api/v1/authentication/validate?jwtToken="+token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp handlers.ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, subject, resp.Subject)
}

func TestUserAdministration(t *testing.T) {
	h, svc := newTestApp(t, testConfig(config.AuthzModelPBAC))
	admin := login(t, h, services.SeedAdminEmail, "admin123")
	user := login(t, h, services.SeedUserEmail, "user123")

	create := handlers.CreateUserRequest{Email: "New@Example.com", Password: "secret99"}
	rec := do(t, h, http.MethodPost, "/api/v1/user", user.Token, create)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/user", admin.Token, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	var created types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "new@example.com", created.Email)
	require.Len(t, created.Roles, 1)
	assert.Equal(t, services.RoleUser, created.Roles[0].RoleName)

	rec = do(t, h, http.MethodPost, "/api/v1/user", admin.Token, create)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/user/"+created.ID.String()+"/roles", admin.Token, handlers.AssignRoleRequest{Role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/api/v1/user/"+created.ID.String()+"/roles/ROLE_ADMIN", admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/user/"+created.ID.String()+"/roles/ROLE_ADMIN", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	stored, err := svc.Users.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Roles, 1)
}

func TestCreateUserWithUnknownRoleLeavesNoRecord(t *testing.T) {
	h, svc := newTestApp(t, testConfig(config.AuthzModelPBAC))
	admin := login(t, h, services.SeedAdminEmail, "admin123")

	create := handlers.CreateUserRequest{Email: "half@example.com", Password: "secret99", Roles: []string{"bogus"}}
	rec := do(t, h, http.MethodPost, "/api/v1/user", admin.Token, create)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	_, err := svc.Users.GetByEmail(context.Background(), "half@example.com")
	require.Error(t, err)

	create.Roles = nil
	rec = do(t, h, http.MethodPost, "/api/v1/user", admin.Token, create)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUserCanReadOnlyOwnRecord(t *testing.T) {
	h, svc := newTestApp(t, testConfig(config.AuthzModelPBAC))
	ctx := context.Background()

	admin, err := svc.Users.GetByEmail(ctx, services.SeedAdminEmail)
	require.NoError(t, err)
	user := login(t, h, services.SeedUserEmail, "user123")
	adminToken := login(t, h, services.SeedAdminEmail, "admin123").Token

	rec := do(t, h, http.MethodGet, "/api/v1/user/"+user.UserID, user.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/user/"+admin.ID.String(), user.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/user/"+user.UserID, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/user/me", user.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
	var me handlers.MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, services.SeedUserEmail, me.Email)
	assert.Equal(t, []string{services.PermissionViewUser}, me.Authorities)
}

func TestRoleAdministrationStampsActor(t *testing.T) {
	h, svc := newTestApp(t, testConfig(config.AuthzModelPBAC))
	admin := login(t, h, services.SeedAdminEmail, "admin123")
	user := login(t, h, services.SeedUserEmail, "user123")

	rec := do(t, h, http.MethodGet, "/api/v1/roles", user.Token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/permissions", admin.Token, handlers.CreatePermissionRequest{Name: "export_reports"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/roles", admin.Token, handlers.CreateRoleRequest{Name: "auditor"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/roles/auditor/permissions", admin.Token, handlers.AssignPermissionRequest{Permission: "EXPORT_REPORTS"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	role, err := svc.Roles.Get(context.Background(), "ROLE_AUDITOR")
	require.NoError(t, err)
	require.Len(t, role.Permissions, 1)
	require.NotNil(t, role.Permissions[0].AssignedBy)
	assert.Equal(t, admin.UserID, role.Permissions[0].AssignedBy.String())

	rec = do(t, h, http.MethodDelete, "/api/v1/roles/auditor/permissions/EXPORT_REPORTS", admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/roles", admin.Token, handlers.CreateRoleRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewServicesRequiresSecret(t *testing.T) {
	cfg := testConfig(config.AuthzModelPBAC)
	cfg.Auth.JWTSecret = ""
	_, err := NewServices(cfg, MemoryStores(memstore.New()), nil)
	require.ErrorIs(t, err, services.ErrInvalidArgument)

	cfg = testConfig("abac")
	_, err = NewServices(cfg, MemoryStores(memstore.New()), nil)
	require.ErrorIs(t, err, services.ErrInvalidArgument)
}

func TestSecurityHeadersAndMetrics(t *testing.T) {
	cfg := testConfig(config.AuthzModelPBAC)
	cfg.Auth.PublicPaths = append(cfg.Auth.PublicPaths, "/metrics")
	svc, err := NewServices(cfg, MemoryStores(memstore.New()), nil)
	require.NoError(t, err)
	h := NewHandler(cfg, svc, zap.NewNop(), metrics.New())

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	do(t, h, http.MethodGet, "/healthz", "garbage", nil)

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gatekeeper_authentications_total{outcome="invalid_token"} 1`)
	assert.Contains(t, body, `gatekeeper_http_requests_total{method="GET",route="/healthz",status="200"}`)
}
