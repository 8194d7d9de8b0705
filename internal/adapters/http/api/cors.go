package api

import (
	"net/http"
)

// CORSConfig holds the cross-origin response policy.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods string
	AllowHeaders string
}

// CORS attaches the configured headers to every response and answers
// preflight requests with 204 and no body.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	wildcard := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]bool, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}
	fallback := "*"
	if !wildcard {
		fallback = cfg.AllowOrigins[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			switch origin := r.Header.Get("Origin"); {
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			default:
				h.Set("Access-Control-Allow-Origin", fallback)
				h.Add("Vary", "Origin")
			}
			if cfg.AllowMethods != "" {
				h.Set("Access-Control-Allow-Methods", cfg.AllowMethods)
			}
			if cfg.AllowHeaders != "" {
				h.Set("Access-Control-Allow-Headers", cfg.AllowHeaders)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
