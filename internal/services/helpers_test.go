package services

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/jjudge-oj/gatekeeper/internal/store/memstore"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	event, err := DecodeAuditEvent(data)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return "id", nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store       *memstore.Store
	publisher   *recordingPublisher
	users       *UserService
	roles       *RoleService
	permissions *PermissionService
	seeder      *Seeder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	pub := &recordingPublisher{}
	auditor := NewAuditor(pub, "audit")
	users := NewUserService(st.Users(), st.Roles(), auditor).WithHashCost(bcrypt.MinCost)
	roles := NewRoleService(st.Roles(), st.Permissions(), auditor)
	perms := NewPermissionService(st.Permissions(), auditor)
	return &fixture{
		store:       st,
		publisher:   pub,
		users:       users,
		roles:       roles,
		permissions: perms,
		seeder:      NewSeeder(users, roles, perms),
	}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	require.NoError(t, f.seeder.Seed(context.Background(), SeedOptions{AdminPassword: "admin123", UserPassword: "user123"}))
}

type bufferWriter struct {
	key         string
	contentType string
	data        []byte
}

func (w *bufferWriter) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	w.key = key
	w.contentType = contentType
	w.data = data
	return nil
}
