// Package authz holds the request-scoped Principal and the authorization
// decision evaluated against it.
package authz

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// Principal is the resolved identity and authority set of the caller.
// It is rebuilt on every request and never persisted.
type Principal struct {
	ID      uuid.UUID
	Subject string
	Email   string

	// CredentialHash is only populated by the identity loader and is
	// cleared before the principal is attached to a request.
	CredentialHash string `json:"-"`

	authorities map[string]struct{}
}

// NewPrincipal builds a Principal. Duplicate and blank authorities are
// collapsed.
func NewPrincipal(id uuid.UUID, subject, email, credentialHash string, authorities []string) *Principal {
	set := make(map[string]struct{}, len(authorities))
	for _, a := range authorities {
		if a == "" {
			continue
		}
		set[a] = struct{}{}
	}
	return &Principal{
		ID:             id,
		Subject:        subject,
		Email:          email,
		CredentialHash: credentialHash,
		authorities:    set,
	}
}

// HasAuthority reports whether name is in the authority set.
func (p *Principal) HasAuthority(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.authorities[name]
	return ok
}

// Authorities returns the authority names in sorted order.
func (p *Principal) Authorities() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.authorities))
	for a := range p.authorities {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// WithoutCredentials returns a copy with the credential hash removed.
func (p *Principal) WithoutCredentials() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	cp.CredentialHash = ""
	return &cp
}

type contextKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the principal attached to ctx, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	if !ok || p == nil {
		return nil, false
	}
	return p, true
}
