package auth

import (
	"context"
	"time"
)

type PrincipalType string

const (
	TypeWorker PrincipalType = "worker"
	TypeUser   PrincipalType = "user"
	TypeAdmin  PrincipalType = "admin"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenantId,omitempty"`
	Role      string        `json:"role,omitempty"`
	Type      PrincipalType `json:"type"`
	TokenID   string        `json:"-"`
	ExpiresAt time.Time     `json:"-"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && (p.Type == TypeAdmin || p.Role == "admin")
}

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the request principal or nil for anonymous requests.
func FromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

// UserID is the principal id, empty for anonymous requests.
func UserID(ctx context.Context) string {
	if p := FromContext(ctx); p != nil {
		return p.ID
	}
	return ""
}
