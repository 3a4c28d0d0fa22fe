// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
)

type ctxKey string

const (
	aliasKey     ctxKey = "alias"
	requestIDKey ctxKey = "request_id"
)

// AuthHeader carries the client key.
const AuthHeader = "Authentication"

// AliasResolver maps a client key to the alias of the user owning it.
type AliasResolver interface {
	ResolveAlias(key string) (string, bool)
}

// KeyAuth resolves the client key of every request to a user alias and
// stores the alias in the request context. Requests without a key are
// rejected with 400 and requests with a key no user owns with 404.
func KeyAuth(users AliasResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AuthHeader)
			if key == "" {
				http.Error(w, "missing key in "+AuthHeader+" header", http.StatusBadRequest)
				return
			}
			alias, ok := users.ResolveAlias(key)
			if !ok {
				http.Error(w, "key does not belong to any user", http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), aliasKey, alias)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAliasFromContext extracts the user alias set by KeyAuth from the
// request context. Returns an empty string if not found.
func GetAliasFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(aliasKey).(string); ok {
		return s
	}
	return ""
}
