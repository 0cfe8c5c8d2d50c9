// security.go - Response headers and the CORS allow-list
package server

import (
	"net/http"

	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are the frontends permitted to call the API.
var DefaultAllowedOrigins = []string{
	"https://panorama-viewer.zeabur.app",
	"http://localhost:8080",
	"http://127.0.0.1:8080",
	"http://localhost:5500",
}

// securityHeadersMiddleware adds security headers to all responses.
// Images are embedded by frontends on other origins, so resources are
// marked cross-origin readable.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cross-Origin-Resource-Policy", "cross-origin")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Admin-Secret"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
