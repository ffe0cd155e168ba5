package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/model"
)

const (
	// SessionCookie is the HttpOnly cookie holding the session token.
	SessionCookie = "qs_session"

	// minAuthDuration is the minimum time spent on a failed API key check.
	minAuthDuration = 200 * time.Millisecond
)

// ErrNoCredentials is returned when a request carries no session or key.
var ErrNoCredentials = errors.New("no credentials")

// Authenticator verifies sessions and API keys.
type Authenticator interface {
	AuthenticateSession(ctx context.Context, token string) (*model.AuthContext, error)
	AuthenticateAPIKey(ctx context.Context, key string) (*model.AuthContext, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	// Optional lets anonymous requests through without an auth context.
	Optional bool
}

// Auth authenticates a request by session cookie, bearer session token,
// bearer API key or X-API-Key header, and injects the auth context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, method, err := authenticate(r, cfg.Authenticator)
			if err != nil {
				if errors.Is(err, ErrNoCredentials) && cfg.Optional {
					next.ServeHTTP(w, r)
					return
				}

				reason := "invalid_credentials"
				if errors.Is(err, ErrNoCredentials) {
					reason = "missing_credentials"
				}
				logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("method", method),
					slog.String("ip", getClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			r = r.WithContext(auth.ContextWithAuth(r.Context(), authCtx))
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate resolves the credentials of r. API key failures are slowed
// to minAuthDuration.
func authenticate(r *http.Request, a Authenticator) (*model.AuthContext, string, error) {
	token, isKey := extractCredentials(r)
	if token == "" {
		return nil, "", ErrNoCredentials
	}

	if !isKey {
		authCtx, err := a.AuthenticateSession(r.Context(), token)
		return authCtx, model.AuthMethodSession, err
	}

	start := time.Now()
	authCtx, err := a.AuthenticateAPIKey(r.Context(), token)
	if err != nil {
		if elapsed := time.Since(start); elapsed < minAuthDuration {
			time.Sleep(minAuthDuration - elapsed)
		}
	}
	return authCtx, model.AuthMethodAPIKey, err
}

// extractCredentials returns the presented token and whether it is an API key.
// Order: Authorization bearer, X-API-Key, session cookie.
func extractCredentials(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			token = strings.TrimSpace(token)
			return token, auth.LooksLikeAPIKey(token)
		}
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, true
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, false
	}
	return "", false
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError writes the JSON error envelope {error, code}.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
