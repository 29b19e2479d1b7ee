package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/markdave123-py/railchat/internal/core"
	"github.com/markdave123-py/railchat/internal/models"
)

// TokenParser resolves a bearer token to an identity.
type TokenParser interface {
	ParseToken(token string) (*models.Identity, error)
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (*models.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*models.Identity)
	return id, ok && id != nil
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return tok, tok != ""
}

// JWTMiddleware validates the Authorization header and attaches the
// caller's identity to the request context.
func JWTMiddleware(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "missing or invalid token", core.ErrAuth)
				return
			}
			id, err := tokens.ParseToken(tok)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalJWT attaches an identity when a valid token is present and lets
// anonymous requests through. A present but invalid token is rejected.
func OptionalJWT(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			id, err := tokens.ParseToken(tok)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireIngest only lets Admin and Superadmin callers through. It must run
// after JWTMiddleware.
func RequireIngest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "authentication required", core.ErrAuth)
			return
		}
		if !id.Role.CanIngest() {
			writeAuthError(w, http.StatusForbidden, "your role cannot manage documents", core.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, msg string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","kind":"` + core.Kind(err) + `"}`))
}
