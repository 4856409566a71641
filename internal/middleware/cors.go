package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders  = "Content-Type, " + RequestIDHeader
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsExposeHeaders = "Content-Disposition, Retry-After, " + RequestIDHeader
	corsMaxAge        = "600"
)

// CORS lets the listed browser origins call the API. A "*" entry allows any
// origin. With no origins configured the middleware only answers preflights.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(allowedOrigins))
	anyOrigin := false
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			anyOrigin = true
			continue
		}
		if origin != "" {
			allow[strings.ToLower(origin)] = struct{}{}
		}
	}
	allowed := func(origin string) bool {
		if anyOrigin {
			return true
		}
		_, ok := allow[strings.ToLower(origin)]
		return ok
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				h := w.Header()
				h.Add("Vary", "Origin")
				if allowed(origin) {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
					h.Set("Access-Control-Allow-Methods", corsAllowMethods)
					h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
					h.Set("Access-Control-Max-Age", corsMaxAge)
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
