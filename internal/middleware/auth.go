package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"formbuilder/internal/auth"
	"formbuilder/internal/httputil"
)

// publicPaths skip authentication
var publicPaths = map[string]bool{
	"/health":          true,
	"/api/method/ping": true,
}

// AuthMiddleware validates bearer tokens and stores the caller on the request.
// A nil verifier lets every request through; only used in dev.
func AuthMiddleware(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if verifier == nil {
		logger.Warn("authentication disabled: JWKS_URL not set")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil || r.Method == http.MethodOptions || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithCaller(r, httputil.Caller{
				UserID: claims.GetUserID(),
				Email:  claims.Email,
				Role:   claims.Role,
			}))
		})
	}
}
