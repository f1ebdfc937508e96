package auth

import (
	"context"
	"net/http"
	"strings"

	"codeguardian/internal/errors"
)

// Require rejects requests without a valid token. A disabled service passes
// everything through, which keeps local single-user setups friction free.
func (s *Service) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		principal, ok := s.authenticate(r)
		if !ok {
			errors.SendError(w, errors.NewAuthenticationError("Authentication required"))
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches a principal to the context when credentials are present
// but never rejects the request.
func (s *Service) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, ok := s.authenticate(r); ok {
			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate tries the Authorization header first, then the session cookie
func (s *Service) authenticate(r *http.Request) (*Principal, bool) {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if principal, err := s.ValidateToken(tokenString); err == nil {
			return principal, true
		}
	}

	if tokenString, ok := s.sessionToken(r); ok {
		if principal, err := s.ValidateToken(tokenString); err == nil {
			return principal, true
		}
	}

	return nil, false
}

// PrincipalFromContext retrieves the authenticated principal, if any
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*Principal)
	return principal, ok
}
