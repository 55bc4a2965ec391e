package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/gatekeeper/internal/store"
	"github.com/jjudge-oj/gatekeeper/types"
	"golang.org/x/crypto/bcrypt"
)

// DefaultUserRole is granted to users created through the API.
const DefaultUserRole = "ROLE_USER"

// NewUser is the input for creating a user.
type NewUser struct {
	Email    string
	Password string
	Roles    []string
}

// UserService encapsulates user use-cases.
type UserService struct {
	users    UserRepository
	roles    RoleRepository
	audit    *Auditor
	hashCost int
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewUserService(users UserRepository, roles RoleRepository, audit *Auditor) *UserService {
	return &UserService{
		users:    users,
		roles:    roles,
		audit:    audit,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithHashCost overrides the bcrypt cost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.hashCost = cost
	return s
}

// NormalizeEmail trims and lower-cases an email before storage or comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a user with a hashed password and the given roles.
// Every role must exist before anything is written.
func (s *UserService) Create(ctx context.Context, input NewUser, actor *uuid.UUID) (types.User, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return types.User{}, fmt.Errorf("%w: email and password are required", ErrInvalidArgument)
	}

	roles := make([]types.Role, 0, len(input.Roles))
	for _, roleName := range input.Roles {
		role, err := s.lookupRole(ctx, roleName)
		if err != nil {
			return types.User{}, err
		}
		roles = append(roles, role)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailInUse
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{Email: email, PasswordHash: string(hashed)})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrEmailInUse
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.audit.Record(ctx, AuditEvent{Type: EventUserCreated, ActorID: actorString(actor), UserID: user.ID.String()})

	now := s.now()
	for _, role := range roles {
		if err := s.users.AssignRole(ctx, user.ID, role.ID, now); err != nil {
			return types.User{}, fmt.Errorf("assign role: %w", err)
		}
		s.audit.Record(ctx, AuditEvent{Type: EventRoleAssigned, ActorID: actorString(actor), UserID: user.ID.String(), Role: role.Name})
	}
	return s.Get(ctx, user.ID)
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords both yield ErrBadCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, ErrBadCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.compareDummy(password)
			return types.User{}, ErrBadCredentials
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrBadCredentials
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return types.User{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	s.audit.Record(ctx, AuditEvent{Type: EventUserLogin, ActorID: user.ID.String(), UserID: user.ID.String()})
	return user, nil
}

// compareDummy spends a bcrypt comparison so unknown emails take as long
// as wrong passwords.
func (s *UserService) compareDummy(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.hashCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// Get returns a user with its role assignments.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	roles, err := s.users.ListRoleAssignments(ctx, id)
	if err != nil {
		return types.User{}, fmt.Errorf("list role assignments: %w", err)
	}
	user.Roles = roles
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.users.List(ctx)
}

// AssignRole grants roleName to the user and stamps the assignment time.
func (s *UserService) AssignRole(ctx context.Context, userID uuid.UUID, roleName string, actor *uuid.UUID) error {
	role, err := s.lookupRole(ctx, roleName)
	if err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.users.AssignRole(ctx, userID, role.ID, s.now()); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	s.audit.Record(ctx, AuditEvent{Type: EventRoleAssigned, ActorID: actorString(actor), UserID: userID.String(), Role: role.Name})
	return nil
}

// RevokeRole removes roleName from the user.
func (s *UserService) RevokeRole(ctx context.Context, userID uuid.UUID, roleName string, actor *uuid.UUID) error {
	role, err := s.lookupRole(ctx, roleName)
	if err != nil {
		return err
	}
	if err := s.users.RevokeRole(ctx, userID, role.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, AuditEvent{Type: EventRoleRevoked, ActorID: actorString(actor), UserID: userID.String(), Role: role.Name})
	return nil
}

func (s *UserService) lookupRole(ctx context.Context, roleName string) (types.Role, error) {
	name := NormalizeRoleName(roleName)
	if name == "" {
		return types.Role{}, fmt.Errorf("%w: role name is required", ErrInvalidArgument)
	}
	return s.roles.GetByName(ctx, name)
}

func actorString(actor *uuid.UUID) string {
	if actor == nil {
		return ""
	}
	return actor.String()
}
