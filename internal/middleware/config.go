package middleware

import (
	"net/http"

	"github.com/spado/songcontest/internal/config"
	"github.com/spado/songcontest/internal/ctxkeys"
)

// Config puts the sanitized configuration into the request context. Secrets
// such as the JWT key, SMTP password and S3 credentials are blanked.
func Config(cfg *config.Config) func(http.Handler) http.Handler {
	sanitized := cfg.Sanitized()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ctxkeys.WithConfig(r.Context(), sanitized)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
