package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jjudge-oj/gatekeeper/config"
	"github.com/jjudge-oj/gatekeeper/internal/db"
	"github.com/jjudge-oj/gatekeeper/internal/services"
	"github.com/jjudge-oj/gatekeeper/internal/store"
	"github.com/jjudge-oj/gatekeeper/internal/store/memstore"
)

// Stores groups the credential store repositories.
type Stores struct {
	Users       services.UserRepository
	Roles       services.RoleRepository
	Permissions services.PermissionRepository

	db *sql.DB
}

// OpenStores opens the store selected by cfg.StoreDriver.
func OpenStores(ctx context.Context, cfg config.Config) (Stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return MemoryStores(memstore.New()), nil
	case config.StoreDriverPostgres, "":
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return Stores{}, err
		}
		return Stores{
			Users:       store.NewUserRepository(conn),
			Roles:       store.NewRoleRepository(conn),
			Permissions: store.NewPermissionRepository(conn),
			db:          conn,
		}, nil
	default:
		return Stores{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// MemoryStores wraps an in-memory store.
func MemoryStores(st *memstore.Store) Stores {
	return Stores{Users: st.Users(), Roles: st.Roles(), Permissions: st.Permissions()}
}

// Close releases the database connection, if any.
func (s Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Services is the wired service layer.
type Services struct {
	Model       services.AuthorityModel
	Tokens      *services.TokenService
	Loader      *services.IdentityLoader
	Users       *services.UserService
	Roles       *services.RoleService
	Permissions *services.PermissionService
	Seeder      *services.Seeder
	Reporter    *services.AccessReporter
}

// NewServices wires services over stores. publisher may be nil, in which
// case audit events are dropped.
func NewServices(cfg config.Config, stores Stores, publisher services.Publisher) (*Services, error) {
	model, err := services.ParseAuthorityModel(cfg.Auth.Model)
	if err != nil {
		return nil, err
	}
	tokens, err := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET: %w", err)
	}

	var auditor *services.Auditor
	if publisher != nil {
		auditor = services.NewAuditor(publisher, cfg.MQ.AuditChannel)
	}

	loader := services.NewIdentityLoader(stores.Users, model)
	users := services.NewUserService(stores.Users, stores.Roles, auditor)
	roles := services.NewRoleService(stores.Roles, stores.Permissions, auditor)
	perms := services.NewPermissionService(stores.Permissions, auditor)

	return &Services{
		Model:       model,
		Tokens:      tokens,
		Loader:      loader,
		Users:       users,
		Roles:       roles,
		Permissions: perms,
		Seeder:      services.NewSeeder(users, roles, perms),
		Reporter:    services.NewAccessReporter(users, roles, loader),
	}, nil
}

// SeedOptions converts the seed configuration.
func SeedOptions(cfg config.Config) services.SeedOptions {
	return services.SeedOptions{AdminPassword: cfg.Seed.AdminPassword, UserPassword: cfg.Seed.UserPassword}
}
