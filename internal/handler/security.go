package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
)

// identityKey is the context key for the authenticated identity.
type identityKey struct{}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(auth.Identity)
	return ident, ok
}

// Security authenticates requests from bearer tokens. The token proves the
// caller's user id; the role is resolved from the user record on every
// request so a role change takes effect immediately.
type Security struct {
	users  auth.Repository
	secret []byte
}

// NewSecurity constructs a Security layer over the user repository.
func NewSecurity(users auth.Repository, secret []byte) *Security {
	return &Security{users: users, secret: secret}
}

// Authenticate is a middleware that requires a valid bearer token and stores
// the resolved identity in the request context.
func (s *Security) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, ok := auth.ParseToken(s.secret, token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		u, err := s.users.GetByID(r.Context(), userID)
		if err != nil {
			respondError(w, r, err)
			return
		}

		ident := auth.Identity{UserID: u.ID, Role: u.Role}
		ctx := context.WithValue(r.Context(), identityKey{}, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin is a middleware that rejects non-admin identities. It must
// run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if !ident.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
