package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORSMiddleware configures CORS settings.
// A "*" entry allows every origin; browsers reject credentials with a wildcard, so none are allowed then.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*")
	if allowAll {
		allowedOrigins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: !allowAll,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})
}
