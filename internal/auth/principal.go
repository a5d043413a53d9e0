package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/workdeck/workdeck-server/internal/models"
)

// Principal is the authenticated identity carried through a request. Role
// is an explicit enum so guards never rely on duck-typed properties to
// decide whether a caller is a platform operator.
type Principal struct {
	UserID   uuid.UUID
	Email    string
	Role     models.UserRole
	TenantID *uuid.UUID
}

// IsOperator reports whether the principal is a platform operator
func (p *Principal) IsOperator() bool {
	return p.Role == models.RoleOperator
}

type principalKey struct{}

// WithPrincipal returns a context carrying the principal
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the request principal, if any. A missing
// principal means the request is unauthenticated; the guards let those
// through because authentication is an upstream concern.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// PrincipalFromClaims builds a principal from validated JWT claims
func PrincipalFromClaims(claims *Claims) *Principal {
	return &Principal{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Role:     claims.Role,
		TenantID: claims.TenantID,
	}
}
