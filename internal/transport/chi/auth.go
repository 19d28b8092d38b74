package chi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/akashkatte-1/rag-paywatch/internal/eventlog"
	"github.com/akashkatte-1/rag-paywatch/internal/logger"
)

// APIKeyHeader carries the client key. Authorization: Bearer is accepted as well.
const APIKeyHeader = "X-API-Key"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// APIKeyAuthMiddleware validates the request key against apiKeys.
// If apiKeys is empty, authentication is disabled (pass-through).
// Either way the hashed key and request id are attached to the context for the event log.
func APIKeyAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, malformed := requestKey(r)

			if _, ok := exemptPaths[strings.TrimSuffix(r.URL.Path, "/")]; !ok && len(validKeys) > 0 {
				switch {
				case malformed:
					writeError(w, http.StatusUnauthorized, codeUnauthorized, "authorization header must use Bearer scheme")
					return
				case key == "":
					writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing api key")
					return
				}
				if _, ok := validKeys[key]; !ok {
					writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
					return
				}
			}

			ctx := eventlog.WithCaller(r.Context(), eventlog.Caller{
				APIKeyHash: logger.HashAPIKey(key),
				RequestID:  middleware.GetReqID(r.Context()),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestKey reads X-API-Key, falling back to a Bearer token.
// malformed is set when Authorization is present with another scheme.
func requestKey(r *http.Request) (key string, malformed bool) {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k, false
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", true
	}
	return auth[len(bearerPrefix):], false
}
