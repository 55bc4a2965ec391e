package handlers

import (
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/jjudge-oj/gatekeeper/internal/authz"
	"github.com/jjudge-oj/gatekeeper/internal/logger"
	"github.com/jjudge-oj/gatekeeper/internal/metrics"
	"github.com/jjudge-oj/gatekeeper/internal/services"
	"go.uber.org/zap"
)

const (
	bearerPrefix        = "bearer "
	validateQueryParam  = "jwtToken"
	msgTokenRequired    = "Token cannot be null or empty"
	loginRateLimitAfter = time.Minute
)

// Authenticator resolves bearer tokens into principals.
type Authenticator struct {
	tokens  *services.TokenService
	loader  *services.IdentityLoader
	metrics *metrics.Metrics
}

// NewAuthenticator builds the bearer filter. m may be nil.
func NewAuthenticator(tokens *services.TokenService, loader *services.IdentityLoader, m *metrics.Metrics) *Authenticator {
	return &Authenticator{tokens: tokens, loader: loader, metrics: m}
}

// Middleware attaches the principal of a valid bearer token to the request
// context. Requests without a bearer token pass through anonymously; an
// invalid token ends the request with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authz.PrincipalFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		token, present := bearerToken(r)
		if !present {
			a.metrics.ObserveAuthentication(metrics.OutcomeAnonymous)
			next.ServeHTTP(w, r)
			return
		}

		log := logger.From(r.Context())
		claims, err := a.tokens.Verify(token)
		if err != nil {
			if errors.Is(err, services.ErrTokenInvalid) || errors.Is(err, services.ErrInvalidArgument) {
				log.Debug("rejected bearer token", zap.Bool("expired", services.IsExpired(err)), zap.Error(err))
				a.metrics.ObserveAuthentication(metrics.OutcomeInvalidToken)
				writeFailure(w, r, http.StatusUnauthorized, MsgInvalidToken)
				return
			}
			a.metrics.ObserveAuthentication(metrics.OutcomeError)
			respondError(w, r, err)
			return
		}

		principal, err := a.loader.LoadBySubject(r.Context(), claims.Subject)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrPrincipalNotFound):
				log.Debug("token subject has no credential record", zap.String("subject", claims.Subject))
				a.metrics.ObserveAuthentication(metrics.OutcomeUnknownSubject)
				writeFailure(w, r, http.StatusUnauthorized, MsgBadCredentials)
			case errors.Is(err, services.ErrInvalidArgument):
				a.metrics.ObserveAuthentication(metrics.OutcomeInvalidToken)
				writeFailure(w, r, http.StatusUnauthorized, MsgInvalidToken)
			default:
				a.metrics.ObserveAuthentication(metrics.OutcomeError)
				respondError(w, r, err)
			}
			return
		}

		a.metrics.ObserveAuthentication(metrics.OutcomeVerified)
		ctx := authz.WithPrincipal(r.Context(), principal.WithoutCredentials())
		ctx = logger.ToContext(ctx, log.With(zap.String("user_id", principal.ID.String())))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken reports whether the request carries a Bearer authorization
// and returns its trimmed token, which may be empty.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.EqualFold(header, strings.TrimSpace(bearerPrefix)) {
		return "", true
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(bearerPrefix):]), true
}

// RequireAuthenticated rejects anonymous requests to any path not matched
// by publicPaths. Patterns use path.Match syntax; a trailing "/**" matches
// the whole subtree.
func RequireAuthenticated(publicPaths []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(publicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := authz.PrincipalFromContext(r.Context()); !ok {
				writeFailure(w, r, http.StatusUnauthorized, MsgBadCredentials)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsPublicPath reports whether p matches one of patterns.
func IsPublicPath(patterns []string, p string) bool {
	p = path.Clean("/" + p)
	for _, pattern := range patterns {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if p == prefix || strings.HasPrefix(p, prefix+"/") {
				return true
			}
			continue
		}
		if matched, err := path.Match(pattern, p); err == nil && matched {
			return true
		}
	}
	return false
}

// Guard evaluates the requirement built for each request. Anonymous
// callers get 401 and principals that fail the requirement get 403.
func Guard(requirement func(r *http.Request) authz.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := authz.PrincipalFromContext(r.Context())
			if !ok {
				writeFailure(w, r, http.StatusUnauthorized, MsgBadCredentials)
				return
			}
			req := requirement(r)
			if !authz.Authorize(principal, req) {
				logger.From(r.Context()).Info("authorization denied",
					zap.String("path", r.URL.Path),
					zap.Stringer("requirement", req),
				)
				respondError(w, r, services.ErrAuthorizationDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require guards a route with a fixed requirement.
func Require(req authz.Requirement) func(http.Handler) http.Handler {
	return Guard(func(*http.Request) authz.Requirement { return req })
}

// AuthHandler serves login and token validation.
type AuthHandler struct {
	users  *services.UserService
	tokens *services.TokenService
}

func NewAuthHandler(users *services.UserService, tokens *services.TokenService) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

// AuthRouter registers authentication routes. Login is throttled per
// client IP when loginLimit is positive.
func AuthRouter(r chi.Router, handler *AuthHandler, loginLimit int) {
	if loginLimit > 0 {
		r.With(httprate.LimitByIP(loginLimit, loginRateLimitAfter)).Post("/login", handler.Login)
	} else {
		r.Post("/login", handler.Login)
	}
	r.Post("/validate", handler.Validate)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	ExpiresIn int64  `json:"expiresIn"`
}

// Login checks credentials and issues a token whose subject is the user id.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	token, err := h.tokens.Issue(user.ID.String())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		UserID:    user.ID.String(),
		ExpiresIn: int64(h.tokens.TTL().Seconds()),
	})
}

type ValidateRequest struct {
	Token string `json:"token"`
}

type ValidateResponse struct {
	Valid     bool      `json:"valid"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Validate checks a token supplied as the jwtToken query parameter or a
// JSON body. It has no side effects.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get(validateQueryParam))
	if token == "" && r.ContentLength != 0 {
		var req ValidateRequest
		if err := decodeAndValidate(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		token = strings.TrimSpace(req.Token)
	}
	if token == "" {
		writeFailure(w, r, http.StatusBadRequest, msgTokenRequired)
		return
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, Subject: claims.Subject, ExpiresAt: claims.ExpiresAt})
}
