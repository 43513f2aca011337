package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/csanfilippo/sgpkit/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// exemptPaths are always public regardless of auth configuration.
var exemptPaths = map[string]bool{
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
}

// readOnlyPrefixes are public for GET requests. Catalog reads stay open;
// ad-hoc propagation and catalog refresh need a token.
var readOnlyPrefixes = []string{
	"/api/v1/satellites/",
}

var errUnauthorized = errors.New("unauthorized")

// isExempt returns true if the request is exempt from auth.
func isExempt(r *http.Request) bool {
	if exemptPaths[r.URL.Path] {
		return true
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt requests when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")

			if header == "" || token == header || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sgpkit"`)
				httputil.WriteError(w, http.StatusUnauthorized, errUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
