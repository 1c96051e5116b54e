// Package webdav exposes the media root as a read-only WebDAV share.
package webdav

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"github.com/mediacellar/mediacellar/internal/auth"
	"github.com/mediacellar/mediacellar/internal/logging"
)

var readOnlyMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	"PROPFIND":         true,
}

// NewHandler creates a read-only WebDAV handler over the media root with
// authentication.
func NewHandler(mediaRoot string, authHandler *auth.Auth) http.Handler {
	davHandler := &webdav.Handler{
		FileSystem: webdav.Dir(mediaRoot),
		LockSystem: webdav.NewMemLS(),
		Prefix:     "/webdav",
	}
	readOnly := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !readOnlyMethods[r.Method] {
			http.Error(w, "read-only share", http.StatusMethodNotAllowed)
			return
		}
		davHandler.ServeHTTP(w, r)
	})
	return BasicAuthMiddleware(authHandler)(readOnly)
}

// BasicAuthMiddleware returns middleware that authenticates via Basic Auth
// or Bearer token (for programmatic access).
func BasicAuthMiddleware(a *auth.Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Try Bearer token first (Authorization: Bearer <jwt>)
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				a.Middleware(next).ServeHTTP(w, r)
				return
			}

			// Fall back to HTTP Basic Auth
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="MediaCellar"`)
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := a.ValidateCredentials(r.Context(), username, password)
			if err != nil {
				logging.Warn("webdav auth failed",
					zap.String("username", username),
					zap.Error(err))
				w.Header().Set("WWW-Authenticate", `Basic realm="MediaCellar"`)
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}

			ctx := auth.WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
