package auth

import (
	"context"
	"strings"
)

// Identity is the per-request resolved identity attached by the authorization
// gate after successful token validation. It lives only for the request.
type Identity struct {
	UserID      string   `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Department  string   `json:"department,omitempty"`
	Permissions []string `json:"permissions"`
}

// IdentityFromUser derives the token identity from a store record.
func IdentityFromUser(u *User) Identity {
	return Identity{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Department:  u.Department,
		Permissions: u.Permissions,
	}
}

// IdentityFromClaims derives the request identity from validated claims.
func IdentityFromClaims(c *Claims) Identity {
	perms := c.Permissions
	if perms == nil {
		perms = []string{}
	}
	return Identity{
		UserID:      c.UserID,
		Email:       c.Email,
		Role:        c.Role,
		Department:  c.Department,
		Permissions: perms,
	}
}

// HasPermission reports whether the identity carries the capability tag.
// Permission semantics belong to downstream handlers, not the gate.
func (id Identity) HasPermission(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	for _, p := range id.Permissions {
		if p == key {
			return true
		}
	}
	return false
}

type identityContextKey struct{}
type tokenContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
// Only the authorization gate writes this value, strictly after validation.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &identity)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
