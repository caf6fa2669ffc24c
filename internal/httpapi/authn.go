package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"aigate.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Authenticator is the slice of the auth service the HTTP layer depends on.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Validate(token string) (*auth.Claims, error)
}

var publicPaths = []string{
	"/api/v1/health",
	"/api/v1/auth/login",
	"/healthz",
	"/readyz",
	"/metrics",
}

// withAuth guards every non-public route. A missing or malformed bearer
// header is rejected before the token codec is ever consulted; an expired
// token and an otherwise invalid token map to distinct response codes.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeAPIError(w, r, http.StatusUnauthorized, codeUnauthorized, "No token provided")
			return
		}

		claims, err := a.authn.Validate(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				writeAPIError(w, r, http.StatusUnauthorized, codeTokenExpired, "Token has expired")
				return
			}
			writeAPIError(w, r, http.StatusUnauthorized, codeInvalidToken, "Invalid token")
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), auth.IdentityFromClaims(claims))
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
