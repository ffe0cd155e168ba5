package middleware

import (
	"net/http"
	"strings"
)

const (
	apiCSP    = "default-src 'none'; frame-ancestors 'none'"
	pageCSP   = "default-src 'self'; img-src 'self' data: https:; style-src 'self' 'unsafe-inline'; frame-ancestors 'none'; form-action 'self'"
	hstsValue = "max-age=31536000; includeSubDomains; preload"
)

// baseHeaders go on every response regardless of path.
var baseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()"},
}

// SecurityConfig controls the response hardening applied by the router.
type SecurityConfig struct {
	// IsDevelopment turns off HSTS so plain-http localhost keeps working.
	IsDevelopment bool
	// MaxRequestBodySize caps request bodies in bytes. Zero disables the cap.
	MaxRequestBodySize int64
}

// Security sets hardening headers. JSON API paths get a deny-all CSP and
// no-store; site pages and published snapshots get a same-origin CSP and
// stay cacheable.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range baseHeaders {
				h.Set(kv[0], kv[1])
			}

			csp := pageCSP
			if isAPIPath(r.URL.Path) {
				csp = apiCSP
				h.Set("Cache-Control", "no-store")
			}
			h.Set("Content-Security-Policy", csp)

			if !cfg.IsDevelopment {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

func isAPIPath(path string) bool {
	rest, ok := strings.CutPrefix(path, "/api")
	return ok && (rest == "" || rest[0] == '/')
}

// MaxBodySize rejects declared lengths over maxBytes with 413 and wraps the
// body so chunked uploads fail once they cross the limit.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
