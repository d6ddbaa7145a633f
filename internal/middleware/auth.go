package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const APIKeyKey contextKey = "api_key"

// HeaderAPIKey carries the caller's model credential.
const HeaderAPIKey = "X-Api-Key"

// CredentialPassthrough copies the caller's credential into the request
// context. It never validates the key; the gateway decides what is usable.
func CredentialPassthrough(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
		if key == "" {
			// Support both "Bearer <key>" and "<key>" formats
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			key = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
		if key != "" {
			r = r.WithContext(context.WithValue(r.Context(), APIKeyKey, key))
		}
		next.ServeHTTP(w, r)
	})
}

// GetAPIKeyFromContext extracts the credential, empty when none was sent.
func GetAPIKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(APIKeyKey).(string); ok {
		return key
	}
	return ""
}
