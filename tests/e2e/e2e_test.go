//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quillscribe/portal/internal/auth"
	"github.com/quillscribe/portal/internal/model"
	"github.com/quillscribe/portal/internal/repository"
)

const e2ePassword = "e2e-password-123"

type sessionResponse struct {
	Token    string         `json:"token"`
	Redirect string         `json:"redirect"`
	Profile  *model.Profile `json:"profile"`
}

type apiKeyCreateResponse struct {
	ID     string   `json:"id"`
	Key    string   `json:"key"`
	Scopes []string `json:"scopes"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("QUILLSCRIBE_BASE_URL", "http://localhost:8080")
	dbURL := requireDB(t)

	email := fmt.Sprintf("e2e-%d@example.com", time.Now().UnixNano())
	seedUser(t, dbURL, email, model.RoleUser)

	session := login(t, baseURL, email)
	if session.Redirect != "/dashboard" {
		t.Fatalf("expected /dashboard redirect, got %q", session.Redirect)
	}

	var folder model.Folder
	status := doJSON(t, http.MethodPost, baseURL+"/api/library/folders", session.Token, map[string]any{"name": "Interviews"}, &folder)
	if status != http.StatusCreated || folder.ID == "" {
		t.Fatalf("expected 201 from folder create, got %d", status)
	}

	var transcript model.Transcript
	status = doJSON(t, http.MethodPost, baseURL+"/api/library/transcripts", session.Token, map[string]any{
		"title":    "Kickoff call",
		"content":  "Welcome everyone.",
		"folderId": folder.ID,
	}, &transcript)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from transcript create, got %d", status)
	}
	if transcript.Folder != "Interviews" {
		t.Fatalf("expected folder name on transcript, got %q", transcript.Folder)
	}

	var listed []model.Transcript
	status = doJSON(t, http.MethodGet, baseURL+"/api/library/transcripts?folder="+folder.ID+"&search=kickoff", session.Token, nil, &listed)
	if status != http.StatusOK || len(listed) != 1 || listed[0].ID != transcript.ID {
		t.Fatalf("expected one listed transcript, got status %d len %d", status, len(listed))
	}

	var stats model.DashboardStats
	if status := doJSON(t, http.MethodGet, baseURL+"/api/dashboard/stats", session.Token, nil, &stats); status != http.StatusOK {
		t.Fatalf("expected 200 from dashboard stats, got %d", status)
	}

	var models map[string]any
	if status := doJSON(t, http.MethodGet, baseURL+"/api/models/openai", "", nil, &models); status != http.StatusOK {
		t.Fatalf("expected 200 from public model list, got %d", status)
	}

	var denied errorResponse
	if status := doJSON(t, http.MethodPost, baseURL+"/api/refresh-models/openai", session.Token, nil, &denied); status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin refresh, got %d", status)
	}

	if status := doJSON(t, http.MethodDelete, baseURL+"/api/library/transcripts/"+transcript.ID, session.Token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("expected 204 from transcript delete, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, baseURL+"/api/library/transcripts/"+transcript.ID, session.Token, nil, &denied); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}

	if status := doJSON(t, http.MethodPost, baseURL+"/api/auth/logout", session.Token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("expected 204 from logout, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, baseURL+"/api/auth/me", session.Token, nil, &denied); status != http.StatusUnauthorized {
		t.Fatalf("expected revoked session to be rejected, got %d", status)
	}
}

func TestE2EAdminFlow(t *testing.T) {
	baseURL := envOrDefault("QUILLSCRIBE_BASE_URL", "http://localhost:8080")
	dbURL := requireDB(t)

	email := fmt.Sprintf("e2e-admin-%d@example.com", time.Now().UnixNano())
	seedUser(t, dbURL, email, model.RoleAdmin)

	session := login(t, baseURL, email)
	if session.Redirect != "/admin" {
		t.Fatalf("expected /admin redirect, got %q", session.Redirect)
	}

	var key apiKeyCreateResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/admin/api-keys", session.Token, map[string]any{
		"name":   "e2e-key",
		"scopes": []string{model.ScopeAdmin},
	}, &key)
	if status != http.StatusCreated || key.Key == "" {
		t.Fatalf("expected 201 with key from api key create, got %d", status)
	}

	var theme map[string]any
	status = doJSON(t, http.MethodPatch, baseURL+"/api/admin/settings/theme", key.Key, map[string]any{
		"path":  "header.height",
		"value": 80,
	}, &theme)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from theme update, got %d", status)
	}
	t.Cleanup(func() {
		_ = doJSON(t, http.MethodPost, baseURL+"/api/admin/settings/theme/reset", key.Key, nil, nil)
	})

	var public map[string]map[string]any
	if status := doJSON(t, http.MethodGet, baseURL+"/api/settings/theme", "", nil, &public); status != http.StatusOK {
		t.Fatalf("expected 200 from public theme, got %d", status)
	}
	if height, _ := public["header"]["height"].(float64); height != 80 {
		t.Fatalf("expected header.height 80, got %v", public["header"]["height"])
	}

	var stats map[string]any
	if status := doJSON(t, http.MethodGet, baseURL+"/api/admin/stats", key.Key, nil, &stats); status != http.StatusOK {
		t.Fatalf("expected 200 from admin stats, got %d", status)
	}

	var logs map[string]any
	if status := doJSON(t, http.MethodGet, baseURL+"/api/admin/logs?limit=10", key.Key, nil, &logs); status != http.StatusOK {
		t.Fatalf("expected 200 from admin logs, got %d", status)
	}
}

// TestE2EContact submits the public contact form.
func TestE2EContact(t *testing.T) {
	baseURL := envOrDefault("QUILLSCRIBE_BASE_URL", "http://localhost:8080")

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	status := doJSON(t, http.MethodPost, baseURL+"/api/contact", "", map[string]any{
		"name":    "E2E",
		"email":   "e2e@example.com",
		"subject": "Hello",
		"message": "Testing the contact form.",
	}, &resp)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202 from contact, got %d", status)
	}
	if resp.ID == "" || resp.Status != model.ContactStatusPending {
		t.Fatalf("unexpected contact response: %+v", resp)
	}

	var invalid errorResponse
	status = doJSON(t, http.MethodPost, baseURL+"/api/contact", "", map[string]any{"name": "E2E"}, &invalid)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete contact, got %d", status)
	}
}

// TestE2ERateLimiting validates that repeated failed logins get 429 with headers.
func TestE2ERateLimiting(t *testing.T) {
	baseURL := envOrDefault("QUILLSCRIBE_BASE_URL", "http://localhost:8080")
	if os.Getenv("E2E_RATE_LIMIT") == "" {
		t.Skip("set E2E_RATE_LIMIT=1 when the server runs with RATE_LIMIT_ENABLED=true")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	var lastResp *http.Response

	for i := 0; i < 50; i++ {
		body := strings.NewReader(`{"email":"nobody@example.com","password":"wrong-password"}`)
		req, err := http.NewRequest(http.MethodPost, baseURL+"/api/auth/login", body)
		if err != nil {
			t.Fatalf("create request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			lastResp = resp
			break
		}
		resp.Body.Close()
	}

	if lastResp == nil {
		t.Fatalf("expected 429 after repeated logins, but never hit rate limit")
	}
	defer lastResp.Body.Close()

	if lastResp.Header.Get("X-RateLimit-Limit") == "" {
		t.Error("missing X-RateLimit-Limit header on 429 response")
	}
	if remaining := lastResp.Header.Get("X-RateLimit-Remaining"); remaining != "0" {
		t.Errorf("expected X-RateLimit-Remaining=0, got %s", remaining)
	}
	if lastResp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header on 429 response")
	}

	var errResp errorResponse
	if err := json.NewDecoder(lastResp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode 429 response: %v", err)
	}
	if errResp.Code != "RATE_LIMITED" {
		t.Errorf("expected RATE_LIMITED code, got %q", errResp.Code)
	}
}

// TestE2ENoSecretsInResponses validates that credentials are never echoed back.
func TestE2ENoSecretsInResponses(t *testing.T) {
	baseURL := envOrDefault("QUILLSCRIBE_BASE_URL", "http://localhost:8080")
	dbURL := requireDB(t)

	email := fmt.Sprintf("e2e-secrets-%d@example.com", time.Now().UnixNano())
	seedUser(t, dbURL, email, model.RoleUser)
	session := login(t, baseURL, email)

	client := &http.Client{Timeout: 10 * time.Second}
	fakeKey := "qs_live_abcdef_" + strings.Repeat("0", 32)

	for _, credential := range []string{fakeKey, session.Token} {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/api/auth/me", nil)
		if err != nil {
			t.Fatalf("create request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+credential)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if strings.Contains(string(body), credential) {
			t.Error("SECURITY: response echoed back the credential")
		}
		if strings.Contains(string(body), "password") {
			t.Error("SECURITY: response mentions the password hash")
		}
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func requireDB(t *testing.T) string {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}
	return dbURL
}

// seedUser inserts a confirmed user so the tests do not depend on email delivery.
func seedUser(t *testing.T, dbURL, email, role string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL, repository.PoolOptions{MaxConns: 2})
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	hash, err := auth.HashPassword(e2ePassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:               ulid.Make().String(),
		Email:            email,
		PasswordHash:     hash,
		EmailConfirmedAt: &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	profile := &model.Profile{UserID: user.ID, Role: role, FullName: "E2E", UpdatedAt: now}
	if err := repo.CreateUserWithProfile(ctx, user, profile); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func login(t *testing.T, baseURL, email string) sessionResponse {
	t.Helper()

	var resp sessionResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/auth/login", "", map[string]any{
		"email":    email,
		"password": e2ePassword,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d", status)
	}
	if resp.Token == "" {
		t.Fatalf("login response missing token")
	}
	return resp
}

func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && resp.ContentLength != 0 && err != io.EOF {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}
