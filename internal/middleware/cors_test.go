package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/me", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	type want struct {
		status int
		origin string
		creds  string
	}
	tests := []struct {
		name    string
		origins []string
		creds   bool
		method  string
		origin  string
		want    want
	}{
		{"nothing configured", nil, true, http.MethodGet, "https://example.com", want{http.StatusOK, "", ""}},
		{"no origin header", []string{"https://example.com"}, true, http.MethodGet, "", want{http.StatusOK, "", ""}},
		{"exact match", []string{"https://example.com"}, true, http.MethodGet, "https://example.com", want{http.StatusOK, "https://example.com", "true"}},
		{"case insensitive", []string{"HTTPS://EXAMPLE.COM"}, false, http.MethodGet, "https://example.com", want{http.StatusOK, "https://example.com", ""}},
		{"unknown origin passes through", []string{"https://example.com"}, true, http.MethodPost, "https://evil.com", want{http.StatusOK, "", ""}},
		{"unknown origin preflight", []string{"https://example.com"}, true, http.MethodOptions, "https://evil.com", want{http.StatusForbidden, "", ""}},
		{"allowed preflight", []string{"https://example.com"}, true, http.MethodOptions, "https://example.com", want{http.StatusNoContent, "https://example.com", "true"}},
		{"wildcard without credentials", []string{"*"}, false, http.MethodGet, "https://anywhere.example", want{http.StatusOK, "https://anywhere.example", ""}},
		{"wildcard dropped with credentials", []string{"*"}, true, http.MethodGet, "https://anywhere.example", want{http.StatusOK, "", ""}},
		{"subdomain pattern", []string{"*.example.com"}, true, http.MethodGet, "https://admin.example.com", want{http.StatusOK, "https://admin.example.com", "true"}},
		{"subdomain lookalike", []string{"*.example.com"}, true, http.MethodGet, "https://notexample.com", want{http.StatusOK, "", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.origins
			cfg.AllowCredentials = tt.creds

			rec := corsRequest(cfg, tt.method, tt.origin)
			got := want{
				status: rec.Code,
				origin: rec.Header().Get("Access-Control-Allow-Origin"),
				creds:  rec.Header().Get("Access-Control-Allow-Credentials"),
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCORS_PreflightHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://example.com"}
	rec := corsRequest(cfg, http.MethodOptions, "https://example.com")

	h := rec.Header()
	if h.Get("Access-Control-Allow-Methods") == "" || h.Get("Access-Control-Allow-Headers") == "" {
		t.Errorf("missing allow headers on preflight: %v", h)
	}
	if got := h.Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q, want 86400", got)
	}
	if got := h.Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}

	simple := corsRequest(cfg, http.MethodGet, "https://example.com").Header()
	if simple.Get("Access-Control-Allow-Methods") != "" {
		t.Error("allow-methods should only be sent on preflight")
	}
	if simple.Get("Access-Control-Expose-Headers") == "" {
		t.Error("expected exposed headers on simple request")
	}
}

func TestOriginPolicy(t *testing.T) {
	policy := newOriginPolicy([]string{" https://Portal.example.com ", "*.quillscribe.io", ""}, true)

	for origin, want := range map[string]bool{
		"https://portal.example.com": true,
		"https://www.quillscribe.io": true,
		"https://a.b.quillscribe.io": true,
		"https://quillscribe.io":     false,
		"https://evilquillscribe.io": false,
		"quillscribe.io":             false,
		"https://other.example.com":  false,
	} {
		if got := policy.allows(origin); got != want {
			t.Errorf("allows(%q) = %v, want %v", origin, got, want)
		}
	}
}
