package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/internal/authz"
	"github.com/jjudge-oj/gatekeeper/internal/store"
)

// maxSubjectLength bounds lookups fed from token subjects.
const maxSubjectLength = 255

// AuthorityModel selects what the authority set of a principal contains.
// A deployment uses exactly one model.
type AuthorityModel string

const (
	// PermissionBased resolves permission names through the user's roles.
	PermissionBased AuthorityModel = "pbac"
	// RoleBased uses the user's role names as authorities.
	RoleBased AuthorityModel = "rbac"
)

func ParseAuthorityModel(value string) (AuthorityModel, error) {
	switch AuthorityModel(strings.ToLower(strings.TrimSpace(value))) {
	case PermissionBased, "":
		return PermissionBased, nil
	case RoleBased:
		return RoleBased, nil
	default:
		return "", fmt.Errorf("%w: unknown authorization model %q", ErrInvalidArgument, value)
	}
}

// IdentityLoader resolves a token subject to a Principal.
type IdentityLoader struct {
	users UserRepository
	model AuthorityModel
}

func NewIdentityLoader(users UserRepository, model AuthorityModel) *IdentityLoader {
	return &IdentityLoader{users: users, model: model}
}

// Model returns the authority model used by the loader.
func (l *IdentityLoader) Model() AuthorityModel {
	return l.model
}

// LoadBySubject returns the principal for subject. A user without any
// authority yields a principal with an empty authority set.
func (l *IdentityLoader) LoadBySubject(ctx context.Context, subject string) (*authz.Principal, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, fmt.Errorf("%w: subject cannot be blank", ErrInvalidArgument)
	}
	if len(subject) > maxSubjectLength {
		return nil, fmt.Errorf("%w: subject exceeds %d characters", ErrInvalidArgument, maxSubjectLength)
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrPrincipalNotFound
	}

	user, err := l.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	authorities, err := l.authorities(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load authorities: %w", err)
	}

	return authz.NewPrincipal(user.ID, subject, user.Email, user.PasswordHash, authorities), nil
}

func (l *IdentityLoader) authorities(ctx context.Context, id uuid.UUID) ([]string, error) {
	if l.model == RoleBased {
		return l.users.RoleNames(ctx, id)
	}
	return l.users.PermissionNames(ctx, id)
}
