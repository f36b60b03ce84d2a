package auth

import (
	"net/http"
)

const userIDHeader = "X-User-ID"

// HeaderAuthenticator resolves the caller identity from the X-User-ID
// header. Identity verification happens upstream at the gateway; here the
// header is treated as an opaque, already-authenticated user identifier.
type HeaderAuthenticator struct{}

func NewHeaderAuthenticator() *HeaderAuthenticator {
	return &HeaderAuthenticator{}
}

func (a *HeaderAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userIDHeader)
		if userID == "" {
			http.Error(w, "missing "+userIDHeader+" header", http.StatusUnauthorized)
			return
		}

		ctx := NewUserContext(r.Context(), User{ID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
