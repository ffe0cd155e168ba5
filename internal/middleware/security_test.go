package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveSecure(cfg SecurityConfig, path string) http.Header {
	h := Security(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Header()
}

func TestSecurity_BaseHeaders(t *testing.T) {
	for _, path := range []string{"/api/models/openai", "/pricing"} {
		got := serveSecure(SecurityConfig{}, path)
		for _, kv := range baseHeaders {
			if v := got.Get(kv[0]); v != kv[1] {
				t.Errorf("%s: %s = %q, want %q", path, kv[0], v, kv[1])
			}
		}
	}
}

func TestSecurity_Profiles(t *testing.T) {
	tests := []struct {
		path      string
		wantCSP   string
		wantCache string
	}{
		{"/api", apiCSP, "no-store"},
		{"/api/models/openai", apiCSP, "no-store"},
		{"/api/library/transcripts", apiCSP, "no-store"},
		{"/", pageCSP, ""},
		{"/pricing", pageCSP, ""},
		{"/apis", pageCSP, ""},
		{"/data/openai-models.json", pageCSP, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := serveSecure(SecurityConfig{}, tt.path)
			if v := got.Get("Content-Security-Policy"); v != tt.wantCSP {
				t.Errorf("CSP = %q, want %q", v, tt.wantCSP)
			}
			if v := got.Get("Cache-Control"); v != tt.wantCache {
				t.Errorf("Cache-Control = %q, want %q", v, tt.wantCache)
			}
		})
	}
}

func TestSecurity_HSTS(t *testing.T) {
	if v := serveSecure(SecurityConfig{}, "/").Get("Strict-Transport-Security"); v != hstsValue {
		t.Errorf("production HSTS = %q, want %q", v, hstsValue)
	}
	if v := serveSecure(SecurityConfig{IsDevelopment: true}, "/").Get("Strict-Transport-Security"); v != "" {
		t.Errorf("development HSTS = %q, want empty", v)
	}
}

func TestSecurity_ServerHeaderStripped(t *testing.T) {
	h := Security(SecurityConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Server") != "" {
			t.Error("Server header visible to inner handler")
		}
	}))
	rec := httptest.NewRecorder()
	rec.Header().Set("Server", "proxy")
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestMaxBodySize(t *testing.T) {
	tests := []struct {
		name          string
		limit         int64
		body          string
		declared      int64
		wantStatus    int
		wantReadError bool
	}{
		{name: "under limit", limit: 64, body: "small body", declared: 10, wantStatus: http.StatusOK},
		{name: "declared over limit", limit: 10, body: strings.Repeat("x", 100), declared: 100, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "undeclared over limit", limit: 10, body: strings.Repeat("x", 100), declared: -1, wantStatus: http.StatusOK, wantReadError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var readErr error
			h := MaxBodySize(tt.limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, readErr = io.Copy(io.Discard, r.Body)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(tt.body))
			req.ContentLength = tt.declared
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if (readErr != nil) != tt.wantReadError {
				t.Errorf("read error = %v, want error %v", readErr, tt.wantReadError)
			}
		})
	}
}

func TestMaxBodySize_EmptyBody(t *testing.T) {
	called := false
	h := MaxBodySize(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("handler not called for bodiless request")
	}
}
