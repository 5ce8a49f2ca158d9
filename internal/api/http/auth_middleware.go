package httpapi

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// requireAuth checks the bearer token against the configured bcrypt hash.
// With no hash configured every request passes as anonymous.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.tokenHash) == 0 {
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), anonymous)))
			return
		}
		token := extractToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		if err := bcrypt.CompareHashAndPassword(s.tokenHash, []byte(token)); err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}
		p := &Principal{Subject: "token", Authenticated: true}
		if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
			p.Subject = id
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

func extractToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

// HashToken returns the bcrypt hash to configure as AUTH_TOKEN_HASH.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
